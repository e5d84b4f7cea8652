package stability

import (
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/nvoss/needforge/pkg/models"
)

// Persona descriptions carry bold markdown labels; age and gender are the
// two characteristics stable enough to compare across runs.
var (
	ageRegex    = regexp.MustCompile(`\*\*Age\*\*:\s*(\d+)`)
	genderRegex = regexp.MustCompile(`(?i)\*\*Gender\*\*:\s*(Male|Female|Non-binary)`)
	wordRegex   = regexp.MustCompile(`\b[a-zA-Z]{4,}\b`)
)

// Component weights of the overall score.
const (
	weightPersonas   = 0.15
	weightCategories = 0.25
	weightPriorities = 0.20
	weightStatements = 0.25
	weightInterviews = 0.15
)

// Metrics is the full consistency analysis across successful iterations.
type Metrics struct {
	PersonaConsistency   PersonaConsistency   `json:"agent_consistency"`
	CategoryConsistency  CategoryConsistency  `json:"need_category_consistency"`
	PriorityConsistency  PriorityConsistency  `json:"need_priority_consistency"`
	StatementSimilarity  StatementSimilarity  `json:"need_statement_similarity"`
	InterviewConsistency InterviewConsistency `json:"interview_consistency"`
	Overall              OverallScore         `json:"overall_score"`
}

type PersonaConsistency struct {
	AgeConsistency                float64 `json:"age_consistency"`
	GenderDistributionConsistency float64 `json:"gender_distribution_consistency"`
	AveragePersonasPerRun         float64 `json:"average_personas_per_run"`
}

type CategoryConsistency struct {
	JaccardSimilarity      float64            `json:"jaccard_similarity"`
	DistributionSimilarity float64            `json:"distribution_similarity"`
	Consistency            float64            `json:"consistency"`
	CategoriesFound        []string           `json:"categories_found"`
	CategoryFrequency      map[string]float64 `json:"category_frequency"`
}

type PriorityConsistency struct {
	Consistency         float64            `json:"consistency"`
	AverageDistribution map[string]float64 `json:"average_distribution"`
	HighPriorityStd     float64            `json:"high_priority_std"`
}

type StatementSimilarity struct {
	KeywordSimilarity float64 `json:"keyword_similarity"`
	AverageNeedsCount float64 `json:"average_needs_count"`
	NeedsCountStd     float64 `json:"needs_count_std"`
}

type InterviewConsistency struct {
	AnswerLengthConsistency float64 `json:"answer_length_consistency"`
	AverageAnswerLength     float64 `json:"average_answer_length"`
}

type OverallScore struct {
	Score           float64            `json:"score"`
	Rating          string             `json:"rating"`
	ComponentScores map[string]float64 `json:"component_scores"`
}

// ComputeMetrics analyzes bundle-to-bundle consistency. Callers must pass at
// least two bundles; fewer make pairwise comparison meaningless.
func ComputeMetrics(bundles []*models.ResultBundle) Metrics {
	m := Metrics{
		PersonaConsistency:   analyzePersonas(bundles),
		CategoryConsistency:  analyzeCategories(bundles),
		PriorityConsistency:  analyzePriorities(bundles),
		StatementSimilarity:  analyzeStatements(bundles),
		InterviewConsistency: analyzeInterviews(bundles),
	}
	m.Overall = overallScore(m)
	return m
}

func analyzePersonas(bundles []*models.ResultBundle) PersonaConsistency {
	var runMeanAges []float64
	var genderDists []map[string]float64
	totalPersonas := 0

	for _, b := range bundles {
		var ages []float64
		genderCounts := map[string]int{}
		for _, p := range b.Personas {
			totalPersonas++
			if m := ageRegex.FindStringSubmatch(p.Description); m != nil {
				if age, err := strconv.Atoi(m[1]); err == nil {
					ages = append(ages, float64(age))
				}
			}
			if m := genderRegex.FindStringSubmatch(p.Description); m != nil {
				genderCounts[normalizeGender(m[1])]++
			}
		}
		if len(ages) > 0 {
			runMeanAges = append(runMeanAges, mean(ages))
		}
		if len(genderCounts) > 0 {
			genderDists = append(genderDists, normalizeCounts(genderCounts))
		}
	}

	// Age spread normalized by the plausible adult range
	ageConsistency := 0.0
	if len(runMeanAges) > 0 {
		ageConsistency = clamp01(1 - stddev(runMeanAges)/50)
	}

	genderConsistency := 0.0
	if len(genderDists) > 0 {
		genderConsistency = distributionSimilarity(genderDists)
	}

	avgPerRun := 0.0
	if len(bundles) > 0 {
		avgPerRun = float64(totalPersonas) / float64(len(bundles))
	}

	return PersonaConsistency{
		AgeConsistency:                round3(ageConsistency),
		GenderDistributionConsistency: round3(genderConsistency),
		AveragePersonasPerRun:         avgPerRun,
	}
}

func analyzeCategories(bundles []*models.ResultBundle) CategoryConsistency {
	var dists []map[string]float64
	allCategories := map[string]bool{}

	for _, b := range bundles {
		byCategory := b.Aggregated.Summary.ByCategory
		total := 0
		for _, v := range byCategory {
			total += v
		}
		if total == 0 {
			continue
		}
		dist := make(map[string]float64, len(byCategory))
		for k, v := range byCategory {
			dist[k] = float64(v) / float64(total)
			allCategories[k] = true
		}
		dists = append(dists, dist)
	}

	if len(dists) == 0 {
		return CategoryConsistency{CategoriesFound: []string{}, CategoryFrequency: map[string]float64{}}
	}

	sets := make([]map[string]bool, len(dists))
	for i, d := range dists {
		set := make(map[string]bool, len(d))
		for k := range d {
			set[k] = true
		}
		sets[i] = set
	}
	jaccard := pairwiseJaccard(sets)
	distSim := distributionSimilarity(dists)

	frequency := make(map[string]float64, len(allCategories))
	found := make([]string, 0, len(allCategories))
	for cat := range allCategories {
		found = append(found, cat)
		count := 0
		for _, d := range dists {
			if _, ok := d[cat]; ok {
				count++
			}
		}
		frequency[cat] = float64(count) / float64(len(dists))
	}
	sort.Strings(found)

	return CategoryConsistency{
		JaccardSimilarity:      round3(jaccard),
		DistributionSimilarity: round3(distSim),
		Consistency:            round3((jaccard + distSim) / 2),
		CategoriesFound:        found,
		CategoryFrequency:      frequency,
	}
}

func analyzePriorities(bundles []*models.ResultBundle) PriorityConsistency {
	var dists []map[string]float64

	for _, b := range bundles {
		byPriority := b.Aggregated.Summary.ByPriority
		total := 0
		for _, v := range byPriority {
			total += v
		}
		if total == 0 {
			continue
		}
		dist := make(map[string]float64, len(byPriority))
		for k, v := range byPriority {
			dist[k] = float64(v) / float64(total)
		}
		dists = append(dists, dist)
	}

	if len(dists) == 0 {
		return PriorityConsistency{AverageDistribution: map[string]float64{}}
	}

	avgDist := make(map[string]float64, 3)
	var highShares []float64
	for _, level := range []string{models.PriorityHigh, models.PriorityMedium, models.PriorityLow} {
		sum := 0.0
		for _, d := range dists {
			sum += d[level]
		}
		avgDist[level] = round3(sum / float64(len(dists)))
	}
	for _, d := range dists {
		highShares = append(highShares, d[models.PriorityHigh])
	}

	return PriorityConsistency{
		Consistency:         round3(distributionSimilarity(dists)),
		AverageDistribution: avgDist,
		HighPriorityStd:     round3(stddev(highShares)),
	}
}

func analyzeStatements(bundles []*models.ResultBundle) StatementSimilarity {
	keywordSets := make([]map[string]bool, 0, len(bundles))
	var needCounts []float64

	for _, b := range bundles {
		keywords := map[string]bool{}
		for _, need := range b.Aggregated.AllNeeds {
			for _, w := range wordRegex.FindAllString(strings.ToLower(need.Statement), -1) {
				keywords[w] = true
			}
		}
		keywordSets = append(keywordSets, keywords)
		needCounts = append(needCounts, float64(len(b.Aggregated.AllNeeds)))
	}

	if len(keywordSets) == 0 {
		return StatementSimilarity{}
	}

	return StatementSimilarity{
		KeywordSimilarity: round3(pairwiseJaccard(keywordSets)),
		AverageNeedsCount: mean(needCounts),
		NeedsCountStd:     stddev(needCounts),
	}
}

func analyzeInterviews(bundles []*models.ResultBundle) InterviewConsistency {
	var runMeanLengths []float64

	for _, b := range bundles {
		var lengths []float64
		for _, iv := range b.Interviews {
			for _, qa := range iv.Exchanges {
				lengths = append(lengths, float64(len(qa.Answer)))
			}
		}
		if len(lengths) > 0 {
			runMeanLengths = append(runMeanLengths, mean(lengths))
		}
	}

	if len(runMeanLengths) == 0 {
		return InterviewConsistency{}
	}

	// Length spread normalized by a typical long-form answer
	return InterviewConsistency{
		AnswerLengthConsistency: round3(clamp01(1 - stddev(runMeanLengths)/500)),
		AverageAnswerLength:     mean(runMeanLengths),
	}
}

func overallScore(m Metrics) OverallScore {
	personaScore := (m.PersonaConsistency.AgeConsistency + m.PersonaConsistency.GenderDistributionConsistency) / 2

	components := map[string]float64{
		"agent_consistency":     round3(personaScore),
		"category_consistency":  m.CategoryConsistency.Consistency,
		"priority_consistency":  m.PriorityConsistency.Consistency,
		"statement_similarity":  m.StatementSimilarity.KeywordSimilarity,
		"interview_consistency": m.InterviewConsistency.AnswerLengthConsistency,
	}

	overall := personaScore*weightPersonas +
		m.CategoryConsistency.Consistency*weightCategories +
		m.PriorityConsistency.Consistency*weightPriorities +
		m.StatementSimilarity.KeywordSimilarity*weightStatements +
		m.InterviewConsistency.AnswerLengthConsistency*weightInterviews

	rating := "Low"
	switch {
	case overall >= 0.85:
		rating = "Excellent"
	case overall >= 0.70:
		rating = "Good"
	case overall >= 0.50:
		rating = "Moderate"
	}

	return OverallScore{
		Score:           round3(overall),
		Rating:          rating,
		ComponentScores: components,
	}
}

func normalizeGender(g string) string {
	g = strings.ToLower(g)
	if g == "non-binary" {
		return "Non-binary"
	}
	return strings.ToUpper(g[:1]) + g[1:]
}

func normalizeCounts(counts map[string]int) map[string]float64 {
	total := 0
	for _, c := range counts {
		total += c
	}
	out := make(map[string]float64, len(counts))
	for k, c := range counts {
		out[k] = float64(c) / float64(total)
	}
	return out
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func stddev(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	m := mean(values)
	variance := 0.0
	for _, v := range values {
		variance += (v - m) * (v - m)
	}
	return math.Sqrt(variance / float64(len(values)))
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}

// pairwiseJaccard averages set overlap over every pair of runs.
func pairwiseJaccard(sets []map[string]bool) float64 {
	var scores []float64
	for i := 0; i < len(sets); i++ {
		for j := i + 1; j < len(sets); j++ {
			union := len(sets[i])
			intersection := 0
			for k := range sets[j] {
				if sets[i][k] {
					intersection++
				} else {
					union++
				}
			}
			if union > 0 {
				scores = append(scores, float64(intersection)/float64(union))
			}
		}
	}
	return mean(scores)
}

// distributionSimilarity averages pairwise cosine similarity over the runs'
// probability distributions, aligned on the union of keys.
func distributionSimilarity(dists []map[string]float64) float64 {
	if len(dists) < 2 {
		return 1.0
	}

	keySet := map[string]bool{}
	for _, d := range dists {
		for k := range d {
			keySet[k] = true
		}
	}
	keys := make([]string, 0, len(keySet))
	for k := range keySet {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	vectors := make([][]float64, len(dists))
	for i, d := range dists {
		vec := make([]float64, len(keys))
		for j, k := range keys {
			vec[j] = d[k]
		}
		vectors[i] = vec
	}

	var sims []float64
	for i := 0; i < len(vectors); i++ {
		for j := i + 1; j < len(vectors); j++ {
			sims = append(sims, cosineSimilarity(vectors[i], vectors[j]))
		}
	}
	if len(sims) == 0 {
		return 1.0
	}
	return mean(sims)
}

func cosineSimilarity(a, b []float64) float64 {
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
