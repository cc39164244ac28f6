package tools

import (
	"errors"
	"fmt"
	"strings"
)

var ErrNoJSON = errors.New("no json found")

// ParseJSON looks for a JSON document somewhere in model output and hands
// candidates to parser until one is accepted. Leading prose, trailing
// chatter and a missing final brace are tolerated.
func ParseJSON(sourceData string, parser func(string) error) error {
	sourceData = strings.TrimSpace(strings.ReplaceAll(sourceData, "\\|", "|"))
	sourceData = stripCodeFence(sourceData)

	if len(sourceData) < 2 {
		return ErrNoJSON
	}

	// objects first, models rarely answer with a bare array
	jsonStartingSymbols := []string{"{", "["}

	var err error = ErrNoJSON
	for _, symbol := range jsonStartingSymbols {
		if bracketIndex := strings.Index(sourceData, symbol); bracketIndex != -1 {
			err = actualParse(strings.TrimSpace(sourceData[bracketIndex:]), parser)
			if err == nil {
				return nil
			}
		}
	}

	return err
}

func actualParse(newSourceData string, parser func(string) error) error {
	// full string first, then chop the tail one symbol at a time
	var err error
	for i := 0; i < len(newSourceData); i++ {
		tmpSourceData := newSourceData[:len(newSourceData)-i]
		if !strings.HasSuffix(tmpSourceData, "}") && !strings.HasSuffix(tmpSourceData, "]") {
			continue
		}

		if err = parser(tmpSourceData); err == nil {
			return nil
		}
	}

	// smaller models tend to forget the closing bracket
	if err = parser(newSourceData + "}"); err == nil {
		return nil
	}

	return fmt.Errorf("failed to parse json: %w", err)
}

func stripCodeFence(s string) string {
	start := strings.Index(s, "```")
	if start == -1 {
		return s
	}
	body := s[start+3:]
	if nl := strings.Index(body, "\n"); nl != -1 {
		// drop language tag, e.g. ```json
		body = body[nl+1:]
	}
	if end := strings.Index(body, "```"); end != -1 {
		body = body[:end]
	}

	return strings.TrimSpace(body)
}
