package service

import (
	"encoding/json"
	"strings"

	jmespath "github.com/jmespath-community/go-jmespath"

	"github.com/oncallops/alertsync/internal/domain/model"
	apperrors "github.com/oncallops/alertsync/internal/errors"
)

// JMESPathEvaluator abstracts JMESPath operations for testability.
type JMESPathEvaluator interface {
	Validate(expr string) error
	Evaluate(expr string, data any) (any, error)
}

// jmespathLibEvaluator implements JMESPathEvaluator using go-jmespath.
type jmespathLibEvaluator struct{}

func (j jmespathLibEvaluator) Validate(expr string) error {
	if strings.TrimSpace(expr) == "" {
		return nil
	}
	_, err := jmespath.Compile(expr)
	return err
}

func (j jmespathLibEvaluator) Evaluate(expr string, data any) (any, error) {
	return jmespath.Search(expr, data)
}

// FeedFilterService evaluates optional subscriber-supplied JMESPath
// expressions against alert update events. A feed subscriber may narrow
// its stream (for example `alert.severity == 'critical'`) without any
// server-side configuration.
type FeedFilterService struct {
	jems JMESPathEvaluator
}

// NewFeedFilterService constructs a FeedFilterService. A nil evaluator
// falls back to the library implementation.
func NewFeedFilterService(evaluator JMESPathEvaluator) *FeedFilterService {
	if evaluator == nil {
		evaluator = jmespathLibEvaluator{}
	}
	return &FeedFilterService{jems: evaluator}
}

// Validate rejects malformed expressions up front so a bad filter fails
// the attach, not every delivery.
func (s *FeedFilterService) Validate(expr string) error {
	if err := s.jems.Validate(expr); err != nil {
		return apperrors.ValidationField("filter", "invalid filter expression")
	}
	return nil
}

// Matches reports whether the event passes the filter expression. An empty
// expression matches everything. Evaluation errors drop the event for this
// subscriber only; the stream itself stays healthy.
func (s *FeedFilterService) Matches(expr string, event model.DomainEvent) bool {
	if strings.TrimSpace(expr) == "" {
		return true
	}

	// Evaluate against the wire shape so filters see the same field names
	// subscribers do.
	raw, err := event.MarshalWire()
	if err != nil {
		return false
	}
	var data any
	if err := json.Unmarshal(raw, &data); err != nil {
		return false
	}

	result, err := s.jems.Evaluate(expr, data)
	if err != nil {
		return false
	}
	return truthy(result)
}

func truthy(v any) bool {
	switch val := v.(type) {
	case nil:
		return false
	case bool:
		return val
	case string:
		return val != ""
	case float64:
		return val != 0
	case []any:
		return len(val) > 0
	case map[string]any:
		return len(val) > 0
	default:
		return true
	}
}
