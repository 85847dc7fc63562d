package server

import (
	"context"
	"errors"
	"testing"

	"github.com/mikeboe/openloop/pkg/agent"
	"github.com/mikeboe/openloop/pkg/config"
)

type captureSink struct {
	events []agent.Event
}

func (c *captureSink) Emit(ev agent.Event) { c.events = append(c.events, ev) }

func (c *captureSink) last() agent.Event {
	if len(c.events) == 0 {
		return agent.Event{}
	}
	return c.events[len(c.events)-1]
}

func TestResearchInvalidEffortEmitsTerminalError(t *testing.T) {
	svc := NewService(nil, &config.Config{}, nil, nil, nil, nil)
	sink := &captureSink{}

	_, err := svc.Research(context.Background(), ResearchRequest{Question: "q", Effort: "extreme"}, sink)
	if err == nil {
		t.Fatal("Research() expected error")
	}
	verr := &agent.ValidationError{}
	if !errors.As(err, &verr) {
		t.Errorf("Research() error = %T, want *agent.ValidationError", err)
	}
	if len(sink.events) != 1 || sink.events[0].Type != agent.EventError {
		t.Errorf("events = %+v, want single terminal error event", sink.events)
	}
}

func TestResearchEngineSetupFailureEmitsTerminalError(t *testing.T) {
	t.Run("no model configured", func(t *testing.T) {
		svc := NewService(nil, &config.Config{}, nil, nil, nil, nil)
		sink := &captureSink{}

		_, err := svc.Research(context.Background(), ResearchRequest{Question: "q", Effort: config.EffortLow}, sink)
		if err == nil {
			t.Fatal("Research() expected error")
		}
		// The stream must never end without a terminal event, even when
		// the engine could not be constructed.
		if last := sink.last(); last.Type != agent.EventError || last.Error == "" {
			t.Errorf("last event = %+v, want terminal error event", last)
		}
	})

	t.Run("model override without api key", func(t *testing.T) {
		t.Setenv("GOOGLE_API_KEY", "")
		svc := NewService(nil, &config.Config{}, nil, nil, nil, nil)
		sink := &captureSink{}

		req := ResearchRequest{
			Question:       "q",
			Effort:         config.EffortLow,
			ModelOverrides: &ModelOverrides{QueryModel: "some-model"},
		}
		_, err := svc.Research(context.Background(), req, sink)
		if err == nil {
			t.Fatal("Research() expected error")
		}
		if last := sink.last(); last.Type != agent.EventError {
			t.Errorf("last event = %+v, want terminal error event", last)
		}
	})
}
