// Package llmtest provides a deterministic llm.Client stub for tests
// across the repo, grounded on the teacher's fake-client-per-test-file
// convention (e.g. internal/app/vector_provider_test.go's stub vector
// client) generalized into one shared helper.
package llmtest

import (
	"context"
	"fmt"
)

// Stub answers GenerateJSON/GenerateText from a scripted queue of
// responses, one per call, in order. A configured Err short-circuits
// every call with that error instead.
type Stub struct {
	JSONResponses []map[string]any
	TextResponses []string
	Err           error

	jsonCalls int
	textCalls int

	// Requests records every (system, user) pair passed to GenerateJSON,
	// for assertions on what a caller actually sent.
	Requests []Request
}

type Request struct {
	System string
	User   string
}

func (s *Stub) GenerateJSON(ctx context.Context, system, user, schemaName string, schema map[string]any) (map[string]any, error) {
	s.Requests = append(s.Requests, Request{System: system, User: user})
	if s.Err != nil {
		return nil, s.Err
	}
	if s.jsonCalls >= len(s.JSONResponses) {
		return nil, fmt.Errorf("llmtest: no more JSON responses configured (call %d)", s.jsonCalls+1)
	}
	resp := s.JSONResponses[s.jsonCalls]
	s.jsonCalls++
	return resp, nil
}

func (s *Stub) GenerateText(ctx context.Context, system, user string) (string, error) {
	s.Requests = append(s.Requests, Request{System: system, User: user})
	if s.Err != nil {
		return "", s.Err
	}
	if s.textCalls >= len(s.TextResponses) {
		return "", fmt.Errorf("llmtest: no more text responses configured (call %d)", s.textCalls+1)
	}
	resp := s.TextResponses[s.textCalls]
	s.textCalls++
	return resp, nil
}
