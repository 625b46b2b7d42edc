// Package scoring produces the post-interview credibility assessment by
// comparing the registration record against the spoken transcript. It runs
// once after finalization and is advisory: failures degrade to a neutral
// default instead of propagating.
package scoring

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"ai-interview-service/internal/contract"
	"ai-interview-service/internal/llm"
	"ai-interview-service/internal/models"
	"ai-interview-service/internal/schema"
)

const (
	scoringTemperature = 0.2
	scoringMaxTokens   = 1200
)

// fieldLabels maps registration fields to the Arabic labels used in the
// comparison prompt. Findings must reference one of these areas (or a raw
// form key); anything else is dropped as invented.
var fieldLabels = map[string]string{
	"full_name":             "الاسم",
	"target_role":           "الوظيفة المطلوبة",
	"years_of_experience":   "عدد سنوات الخبرة",
	"has_field_experience":  "خبرة في نفس المجال",
	"expected_salary":       "الراتب المتوقع",
	"can_start_immediately": "إمكانية البدء فوراً",
	"proximity_to_branch":   "قرب السكن من الفرع",
	"academic_status":       "المسار الأكاديمي",
}

// aliases widen area matching for labels the model tends to shorten.
var aliases = []string{"سنوات الخبرة", "الخبرة", "الراتب", "السكن", "experience", "salary"}

// Scorer builds the structured comparison request and parses the constrained
// response.
type Scorer struct {
	provider  llm.Provider
	validator *schema.Validator
	model     string
	timeout   time.Duration
}

// New returns a Scorer using the given completion provider. model may be
// empty to use the provider default.
func New(provider llm.Provider, validator *schema.Validator, model string, timeout time.Duration) *Scorer {
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	return &Scorer{provider: provider, validator: validator, model: model, timeout: timeout}
}

// Score compares registration data, the transcript, and the pipeline-detected
// inconsistencies. On any malformed or failed response it returns the fixed
// neutral default assessment — scoring never blocks finalization.
func (s *Scorer) Score(
	ctx context.Context,
	c *contract.FactContract,
	registration *models.RegistrationRecord,
	transcript []models.Turn,
	detected []models.Inconsistency,
) *models.CredibilityAssessment {
	prompt, err := s.buildPrompt(registration, transcript, detected)
	if err != nil {
		log.Error().Err(err).Msg("Failed to build scoring prompt")
		return DefaultAssessment()
	}

	sctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	resp, err := s.provider.Complete(sctx, &llm.CompletionRequest{
		Model:        s.model,
		SystemPrompt: "أنت خبير تقييم مصداقية موارد بشرية. أعطِ JSON فقط بدون أي نص إضافي.",
		Messages:     []llm.Message{{Role: "user", Content: prompt}},
		Temperature:  scoringTemperature,
		MaxTokens:    scoringMaxTokens,
	})
	if err != nil {
		log.Error().Err(err).Str("sessionId", c.SessionID()).Msg("Credibility scoring call failed")
		return DefaultAssessment()
	}

	assessment, err := s.parse(resp.Content, registration)
	if err != nil {
		log.Error().Err(err).Str("sessionId", c.SessionID()).Msg("Credibility response malformed")
		return DefaultAssessment()
	}

	log.Info().
		Str("sessionId", c.SessionID()).
		Int("score", assessment.Score).
		Str("level", assessment.Level).
		Msg("Credibility assessment produced")

	return assessment
}

func (s *Scorer) buildPrompt(
	registration *models.RegistrationRecord,
	transcript []models.Turn,
	detected []models.Inconsistency,
) (string, error) {
	detectedJSON, err := json.MarshalIndent(detected, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal detected inconsistencies: %w", err)
	}

	var b strings.Builder
	b.WriteString("أنت خبير في تقييم مصداقية المتقدمين للوظائف.\n\n")
	b.WriteString("# بيانات الطلب الإلكتروني (ما كتبه المتقدم)\n")
	b.WriteString(formatRegistration(registration))
	b.WriteString("\n\n# نص المقابلة الصوتية (ما قاله المتقدم)\n")
	b.WriteString(formatTranscript(transcript))
	b.WriteString("\n\n# التناقضات المكتشفة آلياً\n")
	b.Write(detectedJSON)
	b.WriteString(`

# مهمتك

قارن بين ما كتبه المتقدم بالطلب وما قاله بالمقابلة. قيّم المصداقية بناءً على:

1. الاتساق: هل المعلومات متطابقة؟
2. التفاصيل: هل التفاصيل بالمقابلة تدعم ما كُتب بالطلب؟
3. الواقعية: هل التوقعات واقعية ومنطقية؟
4. الصراحة: هل المتقدم صريح أم يحاول إخفاء شيء؟

أعطِ رد JSON فقط بدون أي نص إضافي، بالحقول التالية:
credibility_score (0-100), credibility_level, inconsistencies_found
(area, form_answer, interview_answer, severity, explanation),
consistency_areas, red_flags, recommendation, bottom_line_summary.

معايير الدرجة:
- 90-100: مصداقية عالية جداً (موثوق بشكل كامل)
- 75-89: مصداقية عالية (موثوق)
- 60-74: مصداقية متوسطة (مقبول مع متابعة)
- 40-59: مصداقية منخفضة (يحتاج تحقق إضافي)
- 0-39: مصداقية منخفضة جداً (غير موثوق)`)

	return b.String(), nil
}

// parse decodes, schema-validates, and sanitizes the model response.
func (s *Scorer) parse(raw string, registration *models.RegistrationRecord) (*models.CredibilityAssessment, error) {
	cleaned := stripFences(raw)

	var doc map[string]any
	if err := json.Unmarshal([]byte(cleaned), &doc); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if err := s.validator.ValidateAssessment(doc); err != nil {
		return nil, fmt.Errorf("response failed schema validation: %w", err)
	}

	// The schema admits fractional scores; round before decoding into the
	// integer field.
	if v, ok := doc["credibility_score"].(float64); ok {
		doc["credibility_score"] = int(math.Round(v))
	}
	normalized, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("normalize response: %w", err)
	}

	var a models.CredibilityAssessment
	if err := json.Unmarshal(normalized, &a); err != nil {
		return nil, fmt.Errorf("decode assessment: %w", err)
	}

	if a.Score < 0 {
		a.Score = 0
	}
	if a.Score > 100 {
		a.Score = 100
	}
	if a.Level == "" {
		a.Level = LevelFromScore(a.Score)
	}
	if a.Recommendation == "" {
		a.Recommendation = RecommendationFromScore(a.Score)
	}

	// Findings may only reference fields present in the contract or the
	// registration record.
	allowed := allowedAreas(registration)
	kept := a.Inconsistencies[:0]
	for _, f := range a.Inconsistencies {
		if areaKnown(f.Area, allowed) {
			kept = append(kept, f)
			continue
		}
		log.Warn().Str("area", f.Area).Msg("Dropping credibility finding against unknown field")
	}
	a.Inconsistencies = kept

	return &a, nil
}

func allowedAreas(registration *models.RegistrationRecord) []string {
	areas := make([]string, 0, len(fieldLabels)+len(aliases))
	for key, label := range fieldLabels {
		areas = append(areas, key, label)
	}
	areas = append(areas, aliases...)
	if registration != nil {
		for key := range registration.Extra {
			areas = append(areas, key)
		}
	}
	return areas
}

func areaKnown(area string, allowed []string) bool {
	area = strings.TrimSpace(area)
	if area == "" {
		return false
	}
	for _, known := range allowed {
		if strings.Contains(area, known) || strings.Contains(known, area) {
			return true
		}
	}
	return false
}

func formatRegistration(rec *models.RegistrationRecord) string {
	if rec == nil {
		return "لا توجد بيانات من الطلب الإلكتروني"
	}

	fieldExp := "لا"
	if rec.HasFieldExperience {
		fieldExp = "نعم"
	}
	lines := []string{
		fmt.Sprintf("- %s: %s", fieldLabels["full_name"], rec.FullName),
		fmt.Sprintf("- %s: %s", fieldLabels["target_role"], rec.TargetRole),
		fmt.Sprintf("- %s: %d", fieldLabels["years_of_experience"], rec.YearsOfExperience),
		fmt.Sprintf("- %s: %s", fieldLabels["has_field_experience"], fieldExp),
		fmt.Sprintf("- %s: %d دينار", fieldLabels["expected_salary"], rec.ExpectedSalary),
	}
	if rec.CanStartImmediately != "" {
		lines = append(lines, fmt.Sprintf("- %s: %s", fieldLabels["can_start_immediately"], rec.CanStartImmediately))
	}
	if rec.ProximityToBranch != "" {
		lines = append(lines, fmt.Sprintf("- %s: %s", fieldLabels["proximity_to_branch"], rec.ProximityToBranch))
	}
	if rec.AcademicStatus != "" {
		lines = append(lines, fmt.Sprintf("- %s: %s", fieldLabels["academic_status"], rec.AcademicStatus))
	}
	for key, value := range rec.Extra {
		lines = append(lines, fmt.Sprintf("- %s: %v", key, value))
	}
	return strings.Join(lines, "\n")
}

func formatTranscript(transcript []models.Turn) string {
	if len(transcript) == 0 {
		return "لا يوجد نص مقابلة"
	}
	lines := make([]string, 0, len(transcript))
	for _, turn := range transcript {
		if turn.Text == "" {
			continue
		}
		speaker := "المتقدم"
		if turn.Speaker == models.SpeakerAgent {
			speaker = "سارة (المحاورة)"
		}
		lines = append(lines, fmt.Sprintf("%s: %s", speaker, turn.Text))
	}
	return strings.Join(lines, "\n")
}

// stripFences removes markdown code fences some models wrap JSON in.
func stripFences(raw string) string {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	return strings.TrimSpace(s)
}

// DefaultAssessment is the fixed neutral result used whenever automatic
// scoring fails: advisory output must never block finalization.
func DefaultAssessment() *models.CredibilityAssessment {
	return &models.CredibilityAssessment{
		Score:           50,
		Level:           "غير محدد",
		Inconsistencies: []models.Finding{},
		ConsistentAreas: []string{},
		RedFlags:        []string{"فشل التقييم التلقائي - يحتاج مراجعة يدوية"},
		Recommendation:  "يحتاج مراجعة يدوية",
		BottomLine:      "لم يتم التقييم بسبب خطأ تقني",
	}
}

// LevelFromScore converts a numeric score to its qualitative band.
func LevelFromScore(score int) string {
	switch {
	case score >= 90:
		return "عالية جداً"
	case score >= 75:
		return "عالية"
	case score >= 60:
		return "متوسطة"
	case score >= 40:
		return "منخفضة"
	default:
		return "منخفضة جداً"
	}
}

// RecommendationFromScore converts a numeric score to a hiring recommendation.
func RecommendationFromScore(score int) string {
	switch {
	case score >= 90:
		return "موثوق بشكل كامل"
	case score >= 75:
		return "موثوق"
	case score >= 60:
		return "مقبول مع متابعة"
	case score >= 40:
		return "يحتاج تحقق إضافي"
	default:
		return "غير موثوق"
	}
}
