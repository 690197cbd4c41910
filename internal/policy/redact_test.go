package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRedactReviewText(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		contains string
		absent   string
	}{
		{
			name:     "email",
			input:    "Seller never answered jane.doe@example.com",
			contains: "[email_redacted]",
			absent:   "jane.doe@example.com",
		},
		{
			name:     "phone",
			input:    "Call me at +1 (555) 123-4567 if you need proof",
			contains: "[phone_redacted]",
			absent:   "123-4567",
		},
		{
			name:     "card keeps last four",
			input:    "charged twice on 4111 1111 1111 1234",
			contains: "**** **** **** 1234",
			absent:   "4111 1111",
		},
		{
			name:     "order number",
			input:    "my order #A1B2C3D4 arrived broken",
			contains: "[order_redacted]",
			absent:   "A1B2C3D4",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := RedactReviewText(tt.input)
			assert.Contains(t, got, tt.contains)
			assert.NotContains(t, got, tt.absent)
		})
	}
}

func TestRedactReviewTextLeavesPlainReviewsAlone(t *testing.T) {
	text := "Battery lasts 2 days, screen is 6.1 inches and bright."
	assert.Equal(t, text, RedactReviewText(text))
	assert.Equal(t, "", RedactReviewText(""))
}

func TestRedactAuthor(t *testing.T) {
	assert.Equal(t, "Maria S.", RedactAuthor("Maria Silva"))
	assert.Equal(t, "Maria S.", RedactAuthor("Maria Clara Silva"))
	assert.Equal(t, "anonymous", RedactAuthor("anonymous"))
	assert.Equal(t, "", RedactAuthor(""))
}
