package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"

	"github.com/mschirtzinger/taskboard/internal/types"
)

var dueParser = func() *when.Parser {
	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)
	return w
}()

// parseDue turns a --due value into YYYY-MM-DD. Calendar dates pass through;
// anything else is read as natural language relative to now ("tomorrow",
// "next friday", "in 3 days").
func parseDue(raw string, now time.Time) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", nil
	}
	if _, err := time.Parse(types.DateLayout, raw); err == nil {
		return raw, nil
	}

	result, err := dueParser.Parse(raw, now)
	if err != nil {
		return "", fmt.Errorf("failed to parse due date %q: %w", raw, err)
	}
	if result == nil {
		return "", types.NewValidationError("due_date", "could not understand due date %q", raw)
	}
	return result.Time.Format(types.DateLayout), nil
}
