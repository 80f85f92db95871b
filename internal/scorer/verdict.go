package scorer

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/Tree-Shu-Zhao/DailyArXivGPT/internal/domain"
)

// verdictPayload mirrors the JSON shape the rubric demands from the LLM.
// The rubric renders the score as an integer string ("8"); bare integers
// are accepted too. Anything else is rejected, never coerced.
type verdictPayload struct {
	Score   scoreValue `json:"Score"`
	Reasons string     `json:"Reasons"`
}

type scoreValue struct {
	value int
	set   bool
}

func (s *scoreValue) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return fmt.Errorf("empty score")
	}

	text := string(data)
	if data[0] == '"' {
		var unquoted string
		if err := json.Unmarshal(data, &unquoted); err != nil {
			return err
		}
		text = strings.TrimSpace(unquoted)
	}

	n, err := strconv.Atoi(text)
	if err != nil {
		return fmt.Errorf("score %q is not an integer", text)
	}

	s.value = n
	s.set = true
	return nil
}

// parseVerdict extracts and validates the scoring JSON from an LLM
// response. All failures match domain.ErrMalformedVerdict.
func parseVerdict(content string) (domain.ScoreVerdict, error) {
	raw := extractJSON(content)
	if raw == "" {
		return domain.ScoreVerdict{}, fmt.Errorf("%w: no JSON object in response", domain.ErrMalformedVerdict)
	}

	var payload verdictPayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return domain.ScoreVerdict{}, fmt.Errorf("%w: %v", domain.ErrMalformedVerdict, err)
	}

	if !payload.Score.set {
		return domain.ScoreVerdict{}, fmt.Errorf("%w: missing score", domain.ErrMalformedVerdict)
	}
	if payload.Score.value < 0 || payload.Score.value > 10 {
		return domain.ScoreVerdict{}, fmt.Errorf("%w: score %d outside [0,10]", domain.ErrMalformedVerdict, payload.Score.value)
	}
	if strings.TrimSpace(payload.Reasons) == "" {
		return domain.ScoreVerdict{}, fmt.Errorf("%w: missing reasons", domain.ErrMalformedVerdict)
	}

	return domain.ScoreVerdict{
		Score:   payload.Score.value,
		Reasons: strings.TrimSpace(payload.Reasons),
	}, nil
}
