// Package pipeline runs the per-turn processing chain: contract integrity
// check, utterance generation, fact verification, and persona enforcement,
// then advances the interview stage.
package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"ai-interview-service/internal/contract"
	"ai-interview-service/internal/llm"
	"ai-interview-service/internal/models"
	"ai-interview-service/internal/observability/logging"
	"ai-interview-service/internal/observability/metrics"
	"ai-interview-service/internal/persona"
	"ai-interview-service/internal/stage"
)

const (
	generationTemperature = 0.2
	generationMaxTokens   = 100

	// maxCorrectionPasses bounds repeated fact-correction over one utterance.
	maxCorrectionPasses = 5
)

// fallbackApology is spoken when generation or persona enforcement fails
// twice in a row. Fixed text, known to satisfy the dialect rules.
const fallbackApology = "آسفة، صار عندي مشكلة صغيرة. ممكن تعيد اللي حكيته؟"

// State is the mutable per-session interview state the pipeline operates on.
type State struct {
	Contract        *contract.FactContract
	Stage           stage.ID
	Turns           []models.Turn
	Inconsistencies []models.Inconsistency
	StartedAt       time.Time

	verifier *contract.Verifier
	enforcer *persona.Enforcer
}

// NewState initializes session state at the opening stage.
func NewState(c *contract.FactContract) *State {
	return &State{
		Contract:  c,
		Stage:     stage.Opening,
		StartedAt: time.Now().UTC(),
		verifier:  contract.NewVerifier(c),
		enforcer:  persona.NewEnforcer(),
	}
}

// AgentTurns counts completed agent utterances.
func (s *State) AgentTurns() int {
	n := 0
	for _, t := range s.Turns {
		if t.Speaker == models.SpeakerAgent {
			n++
		}
	}
	return n
}

// Result is the outcome of one processed turn.
type Result struct {
	Utterance          string
	Stage              stage.ID
	Turn               int
	InconsistencyCount int
}

// Pipeline composes the turn chain around a completion provider.
type Pipeline struct {
	provider llm.Provider
	stages   *stage.Manager
	metrics  *metrics.Metrics
	model    string
}

// New returns a Pipeline. model may be empty to use the provider default.
func New(provider llm.Provider, stages *stage.Manager, model string) *Pipeline {
	return &Pipeline{
		provider: provider,
		stages:   stages,
		metrics:  metrics.DefaultMetrics,
		model:    model,
	}
}

// Open produces the interview's first utterance. Only the agent turn is
// appended; there is no candidate input yet.
func (p *Pipeline) Open(ctx context.Context, st *State) (*Result, error) {
	return p.run(ctx, st, "")
}

// ProcessTurn runs one full turn: the candidate's transcribed input goes in,
// a verified and persona-enforced agent utterance comes out. Exactly two
// turns are appended to the transcript: the input and the response.
func (p *Pipeline) ProcessTurn(ctx context.Context, st *State, input string) (*Result, error) {
	return p.run(ctx, st, input)
}

func (p *Pipeline) run(ctx context.Context, st *State, input string) (*Result, error) {
	if !st.Contract.VerifyIntegrity() {
		p.metrics.RecordIntegrityFailure()
		return nil, fmt.Errorf("%w: session %s", contract.ErrIntegrity, st.Contract.SessionID())
	}

	logger := logging.WithTurn(st.Contract.SessionID(), st.Contract.CandidateID(), st.AgentTurns()+1, string(st.Stage))

	def, err := p.stages.Definition(st.Stage)
	if err != nil {
		return nil, err
	}

	utterance, err := p.generate(ctx, st, def, input, "")
	if err != nil {
		logger.Error().Err(err).Msg("Generation failed twice, falling back to apology")
		utterance = fallbackApology
	} else {
		utterance = p.verifyFacts(st, utterance)
		utterance = p.enforcePersona(ctx, st, def, input, utterance)
	}

	now := time.Now().UTC()
	if input != "" {
		st.Turns = append(st.Turns, models.Turn{
			Speaker:   models.SpeakerCandidate,
			Text:      input,
			Stage:     string(st.Stage),
			Timestamp: now,
		})
	}
	st.Turns = append(st.Turns, models.Turn{
		Speaker:   models.SpeakerAgent,
		Text:      utterance,
		Stage:     string(st.Stage),
		Timestamp: now,
	})

	p.metrics.RecordTurn(string(st.Stage))
	st.Stage = p.stages.Advance(st.Stage, st.Turns)

	return &Result{
		Utterance:          utterance,
		Stage:              st.Stage,
		Turn:               st.AgentTurns(),
		InconsistencyCount: len(st.Inconsistencies),
	}, nil
}

// generate asks the provider for the next utterance, retrying once.
// extraRule is appended to the system prompt on corrective regeneration.
func (p *Pipeline) generate(ctx context.Context, st *State, def stage.Definition, input, extraRule string) (string, error) {
	req := &llm.CompletionRequest{
		Model:        p.model,
		SystemPrompt: p.systemPrompt(st, def, extraRule),
		Messages:     p.history(st, input),
		Temperature:  generationTemperature,
		MaxTokens:    generationMaxTokens,
	}

	start := time.Now()
	resp, err := p.provider.Complete(ctx, req)
	p.metrics.RecordCompletion(p.provider.Name(), "generation", err, time.Since(start).Seconds())
	if err == nil {
		return strings.TrimSpace(resp.Content), nil
	}

	p.metrics.RecordCompletionRetry()
	start = time.Now()
	resp, err = p.provider.Complete(ctx, req)
	p.metrics.RecordCompletion(p.provider.Name(), "generation", err, time.Since(start).Seconds())
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(resp.Content), nil
}

// verifyFacts corrects numeric mismatches against the contract, recording one
// inconsistency per corrected mention.
func (p *Pipeline) verifyFacts(st *State, utterance string) string {
	for range maxCorrectionPasses {
		res := st.verifier.Verify(utterance)
		if res.Valid {
			return res.CorrectedUtterance
		}

		area := "عدد سنوات الخبرة"
		contractValue := fmt.Sprintf("%d", st.Contract.YearsOfExperience())
		if strings.Contains(res.Error, "salary") {
			area = "الراتب المتوقع"
			contractValue = fmt.Sprintf("%d", st.Contract.ExpectedSalary())
		}

		st.Inconsistencies = append(st.Inconsistencies, models.Inconsistency{
			Kind:          models.KindModelHallucination,
			Area:          area,
			ContractValue: contractValue,
			SpokenValue:   utterance,
			Severity:      "عالية",
			Description:   res.Error,
			Turn:          st.AgentTurns() + 1,
			Timestamp:     time.Now().UTC(),
		})
		p.metrics.RecordHallucinationCorrected(area)

		logging.WithSession(st.Contract.SessionID(), st.Contract.CandidateID()).
			Warn().Str("detail", res.Error).Msg("Corrected hallucinated fact in generated utterance")

		utterance = res.CorrectedUtterance
	}
	return utterance
}

// enforcePersona applies the dialect rules, regenerating once on a language
// violation before giving up and using the fixed apology.
func (p *Pipeline) enforcePersona(ctx context.Context, st *State, def stage.Definition, input, utterance string) string {
	res := st.enforcer.Enforce(utterance)
	if res.WeakDialect {
		p.metrics.RecordDialectWarning()
	}
	if res.Valid {
		return res.CorrectedUtterance
	}

	p.metrics.RecordPersonaViolation()
	logger := logging.WithSession(st.Contract.SessionID(), st.Contract.CandidateID())
	logger.Warn().Str("detail", res.Error).Msg("Language violation in generated utterance, regenerating")

	regenerated, err := p.generate(ctx, st, def, input,
		"\n- تنبيه: ردك السابق احتوى على كلمات إنجليزية. أعد الصياغة بالعربية الأردنية فقط.")
	if err == nil {
		regenerated = p.verifyFacts(st, regenerated)
		if res2 := st.enforcer.Enforce(regenerated); res2.Valid {
			if res2.WeakDialect {
				p.metrics.RecordDialectWarning()
			}
			return res2.CorrectedUtterance
		}
	}

	p.metrics.RecordPersonaFallback()
	logger.Warn().Msg("Regeneration still violated language rules, using fallback apology")
	return fallbackApology
}

func (p *Pipeline) systemPrompt(st *State, def stage.Definition, extraRule string) string {
	var b strings.Builder
	b.WriteString("أنتِ سارة، موظفة موارد بشرية أردنية بتعملي مقابلة صوتية قصيرة مع متقدم لوظيفة.\n\n")
	b.WriteString(st.Contract.FactSummary())
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "# المرحلة الحالية: %s\nالهدف: %s\n\n", def.Name, def.Goal)
	b.WriteString(`# قواعد صارمة
- احكي باللهجة الأردنية العامية فقط. ممنوع منعاً باتاً أي كلمة إنجليزية.
- لا تخترعي أي معلومة عن المتقدم غير الموجودة فوق.
- إذا ذكرتي رقم (سنوات خبرة أو راتب)، استخدمي الرقم الدقيق من الحقائق.
- خلي ردك قصير: جملة أو جملتين وسؤال واحد بس.
- لا تحكي إنك ذكاء اصطناعي أو برنامج.`)
	b.WriteString(extraRule)
	return b.String()
}

// history converts the transcript to chat messages, appending the new
// candidate input when present.
func (p *Pipeline) history(st *State, input string) []llm.Message {
	msgs := make([]llm.Message, 0, len(st.Turns)+1)
	for _, t := range st.Turns {
		role := "user"
		if t.Speaker == models.SpeakerAgent {
			role = "assistant"
		}
		msgs = append(msgs, llm.Message{Role: role, Content: t.Text})
	}
	if input != "" {
		msgs = append(msgs, llm.Message{Role: "user", Content: input})
	} else if len(msgs) == 0 {
		msgs = append(msgs, llm.Message{Role: "user", Content: "ابدئي المقابلة برسالة ترحيب."})
	}
	return msgs
}
