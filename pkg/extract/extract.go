// Package extract turns free-form user text into a structured, partially
// filled requirement set. The primary path asks an OpenAI-compatible model
// under a strict output schema at temperature zero; any failure degrades
// silently to a deterministic heuristic extractor. The missing-field list is
// always recomputed locally, never trusted from the model.
package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// fallbackConfidence tags results produced by the heuristic extractor.
const fallbackConfidence = 0.2

// requiredFields is the canonical required-field list, in prompt order.
var requiredFields = []string{"environment", "instance_type", "operating_system", "storage_size", "region"}

// RequirementSet is the structured result of one extraction call.
// Unknown fields stay nil; enum-like values are canonicalized to lowercase.
type RequirementSet struct {
	Intent          string
	Environment     *string
	InstanceType    *string
	OperatingSystem *string
	StorageSize     *int
	Region          *string
	KeyPair         *string
	VPCID           *string
	SubnetID        *string
	Missing         []string
	Confidence      float64
}

// llmPayload is the schema-constrained shape the model returns.
type llmPayload struct {
	Intent          string  `json:"intent"`
	Environment     *string `json:"environment"`
	InstanceType    *string `json:"instance_type"`
	OperatingSystem *string `json:"operating_system"`
	StorageSize     *int    `json:"storage_size"`
	Region          *string `json:"region"`
	KeyPair         *string `json:"key_pair"`
	VPCID           *string `json:"vpc_id"`
	SubnetID        *string `json:"subnet_id"`
	Confidence      float64 `json:"confidence"`
}

// ChatCompleter is the slice of the LLM client the extractor needs.
type ChatCompleter interface {
	Chat(ctx context.Context, model string, messages []ChatMessage) (string, error)
}

// Extractor produces requirement sets from user messages.
type Extractor struct {
	client  ChatCompleter
	model   string
	timeout time.Duration
}

// NewExtractor creates an extractor. A nil client disables the LLM path and
// every call uses the heuristic fallback.
func NewExtractor(client ChatCompleter, model string, timeout time.Duration) *Extractor {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Extractor{client: client, model: model, timeout: timeout}
}

const systemPrompt = `You extract cloud resource requirements from a user message.
Fill only fields explicitly present in the message; use null for everything else.
environment is one of dev, qa, prod. operating_system is one of ubuntu, ubuntu22,
amazon-linux, windows, centos. storage_size is in GB. region is an AWS region code.`

// Extract returns a requirement set for the message. It never returns an
// error: extraction failure degrades to the heuristic path.
func (e *Extractor) Extract(ctx context.Context, message, department string) RequirementSet {
	if e.client != nil {
		set, err := e.extractLLM(ctx, message, department)
		if err == nil {
			return set
		}
		slog.Warn("llm_extraction_failed", "error", err)
	}

	return e.heuristicFallback(message)
}

func (e *Extractor) extractLLM(ctx context.Context, message, department string) (RequirementSet, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	messages := []ChatMessage{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: fmt.Sprintf("Department: %s\nMessage: %s", department, message)},
	}

	raw, err := e.client.Chat(ctx, e.model, messages)
	if err != nil {
		return RequirementSet{}, err
	}

	var payload llmPayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return RequirementSet{}, fmt.Errorf("malformed extraction payload: %w", err)
	}

	set := RequirementSet{
		Intent:          payload.Intent,
		Environment:     normalizePtr(payload.Environment),
		InstanceType:    normalizePtr(payload.InstanceType),
		OperatingSystem: normalizePtr(payload.OperatingSystem),
		StorageSize:     payload.StorageSize,
		Region:          normalizePtr(payload.Region),
		KeyPair:         normalizePtr(payload.KeyPair),
		VPCID:           trimPtr(payload.VPCID),
		SubnetID:        trimPtr(payload.SubnetID),
		Confidence:      payload.Confidence,
	}
	set.Missing = computeMissing(set)
	return set, nil
}

// computeMissing recomputes the missing required fields locally from the
// canonical list.
func computeMissing(set RequirementSet) []string {
	var missing []string
	for _, field := range requiredFields {
		switch field {
		case "environment":
			if set.Environment == nil {
				missing = append(missing, field)
			}
		case "instance_type":
			if set.InstanceType == nil {
				missing = append(missing, field)
			}
		case "operating_system":
			if set.OperatingSystem == nil {
				missing = append(missing, field)
			}
		case "storage_size":
			if set.StorageSize == nil {
				missing = append(missing, field)
			}
		case "region":
			if set.Region == nil {
				missing = append(missing, field)
			}
		}
	}
	return missing
}

// normalizePtr lowercases and trims an enum-like value, mapping empty to nil.
func normalizePtr(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.ToLower(strings.TrimSpace(*s))
	if v == "" {
		return nil
	}
	return &v
}

func trimPtr(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}
