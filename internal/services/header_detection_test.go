package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"spreadsheet-data-cleaner/internal/logger"
	"spreadsheet-data-cleaner/internal/models"
)

func TestHeaderRowDetector_DetectHeaderRow(t *testing.T) {
	preview := [][]string{
		{"Quarterly export", "", ""},
		{"", "", ""},
		{"full_name", "contact_email", "age"},
		{"Ada", "ada@example.com", "36"},
	}

	testCases := []struct {
		name         string
		response     string
		err          error
		expected     int
		wantFellBack bool
	}{
		{name: "plain integer", response: "2", expected: 2},
		{name: "integer with whitespace", response: "  2\n", expected: 2},
		{name: "integer in backticks", response: "`2`", expected: 2},
		{name: "integer with trailing period", response: "2.", expected: 2},
		{name: "first row", response: "0", expected: 0},
		{name: "gateway error", err: errors.New("connection refused"), expected: 0, wantFellBack: true},
		{name: "prose answer", response: "The header is on row two", expected: 0, wantFellBack: true},
		{name: "negative index", response: "-1", expected: 0, wantFellBack: true},
		{name: "index outside preview", response: "12", expected: 0, wantFellBack: true},
		{name: "empty answer", response: "", expected: 0, wantFellBack: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			gateway := newStubGateway(tc.response)
			gateway.err = tc.err
			detector := NewHeaderRowDetector(gateway, logger.Nop())

			got := detector.Detect(context.Background(), preview)

			assert.Equal(t, tc.expected, got.Index)
			assert.Equal(t, tc.wantFellBack, got.FellBack)
		})
	}
}

func TestHeaderRowDetector_RequestShape(t *testing.T) {
	gateway := newStubGateway("1")
	detector := NewHeaderRowDetector(gateway, logger.Nop())

	preview := [][]string{
		{"Report", ""},
		{"Name", "Email"},
	}
	assert.Equal(t, 1, detector.DetectHeaderRow(context.Background(), preview))

	if assert.Len(t, gateway.calls, 1) {
		call := gateway.calls[0]
		assert.Equal(t, float32(0.1), call.Temperature)
		assert.Equal(t, 10, call.MaxTokens)
		assert.Equal(t, "You are a helpful assistant.", call.SystemPrompt)
		assert.Contains(t, call.UserPrompt, "0: [Report, NaN]")
		assert.Contains(t, call.UserPrompt, "1: [Name, Email]")
		assert.Contains(t, call.UserPrompt, "Respond only with a single integer.")
	}
}

func TestHeaderRowDetector_EmptyPreview(t *testing.T) {
	gateway := newStubGateway("3")
	detector := NewHeaderRowDetector(gateway, logger.Nop())

	got := detector.Detect(context.Background(), nil)

	assert.Equal(t, 0, got.Index)
	assert.True(t, got.FellBack)
	assert.Empty(t, gateway.calls, "no model call is made for an empty sheet")
}

func TestHeaderRowDetector_GatewayErrorIsSwallowed(t *testing.T) {
	gateway := newStubGateway()
	gateway.err = models.ErrGateway
	detector := NewHeaderRowDetector(gateway, logger.Nop())

	assert.NotPanics(t, func() {
		assert.Equal(t, 0, detector.DetectHeaderRow(context.Background(), [][]string{{"a"}}))
	})
}

func TestParseRowIndex(t *testing.T) {
	testCases := []struct {
		input   string
		want    int
		wantErr bool
	}{
		{input: "4", want: 4},
		{input: "```4```", want: 4},
		{input: " 7 ", want: 7},
		{input: "four", wantErr: true},
		{input: "1.5", wantErr: true},
		{input: "-3", wantErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.input, func(t *testing.T) {
			got, err := parseRowIndex(tc.input)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestFormatPreviewRow(t *testing.T) {
	assert.Equal(t, "[a,  , NaN]", formatPreviewRow([]string{"a", " ", ""}))
}
