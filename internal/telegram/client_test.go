package telegram

import (
	"strings"
	"testing"
	"time"

	"github.com/rewired-gh/tickerpulse/internal/models"
)

func TestEscapeMarkdownV2(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Hello World", "Hello World"},
		{"Hello_World", "Hello\\_World"},
		{"Test*bold*", "Test\\*bold\\*"},
		{"Price: $100.50", "Price: $100\\.50"},
		{"[link](url)", "\\[link\\]\\(url\\)"},
		{"~strikethrough~", "\\~strikethrough\\~"},
		{"`code`", "\\`code\\`"},
		{">blockquote", "\\>blockquote"},
		{"#header", "\\#header"},
		{"+plus-minus", "\\+plus\\-minus"},
		{"=equal|pipe", "\\=equal\\|pipe"},
		{"{brace}", "\\{brace\\}"},
		{"end!", "end\\!"},
		{"", ""},
		{"_*[]()~`>#+-=|{}.!", "\\_\\*\\[\\]\\(\\)\\~\\`\\>\\#\\+\\-\\=\\|\\{\\}\\.\\!"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := escapeMarkdownV2(tt.input)
			if result != tt.expected {
				t.Errorf("escapeMarkdownV2(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestNewClient_InvalidChatID(t *testing.T) {
	// The chat ID is checked before the bot token is validated over the network.
	_, err := NewClient("", "not-a-number", 3, time.Second)
	if err == nil {
		t.Error("Expected error for invalid chat ID, got nil")
	}
}

func TestFormatReport(t *testing.T) {
	r := &models.IncidenceReport{
		OffsetVolume: 1,
		GeneratedAt:  time.Date(2021, 5, 1, 9, 30, 0, 0, time.UTC),
		Rows: []models.IncidenceRow{
			{Ticker: "AAPL", Incidence: 0.5, IncidenceOffset: 0.51, WithinTolerance: true},
			{Ticker: "GME", Incidence: 0.1, IncidenceOffset: 0.9, Status: models.RowSynthetic},
			{Ticker: "TSLA", Incidence: 0.6, IncidenceOffset: 0.4},
		},
		Mean: models.MeanRow{WithinTolerance: 1.0 / 3, Rows: 3, SyntheticRows: 1},
	}

	msg := formatReport(r)

	for _, want := range []string{
		"*Power:* 33\\.33%",
		"2021\\-05\\-01 09:30",
		"Reddit did an OK job this time\\.",
		"1 day ahead",
		"✅ `AAPL 0\\.50 / 0\\.51`",
		"❌ `TSLA 0\\.60 / 0\\.40`",
		"3 tickers analyzed, 1 without data",
	} {
		if !strings.Contains(msg, want) {
			t.Errorf("message missing %q:\n%s", want, msg)
		}
	}
	if strings.Contains(msg, "GME") {
		t.Errorf("synthetic rows should not be listed:\n%s", msg)
	}
}
