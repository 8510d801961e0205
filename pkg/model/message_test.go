package model_test

import (
	"errors"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/kristal/pkg/model"
)

func TestRoleValidate(t *testing.T) {
	gt.NoError(t, model.RoleUser.Validate())
	gt.NoError(t, model.RoleAssistant.Validate())

	err := model.Role("system").Validate()
	gt.Error(t, err)
	gt.True(t, errors.Is(err, model.ErrInvalidRole))
}

func TestSourceValidate(t *testing.T) {
	testCases := []struct {
		name   string
		source model.Source
		valid  bool
	}{
		{"document", model.Source{Type: model.SourceTypeDocument, Name: "Fee schedule"}, true},
		{"table with query", model.Source{Type: model.SourceTypeTable, Name: "holdings", Query: "SELECT 1"}, true},
		{"url", model.Source{Type: model.SourceTypeURL, Name: "site", URL: "https://example.com"}, true},
		{"unknown type", model.Source{Type: "video", Name: "clip"}, false},
		{"empty name", model.Source{Type: model.SourceTypeDocument}, false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.source.Validate()
			if tc.valid {
				gt.NoError(t, err)
			} else {
				gt.Error(t, err)
			}
		})
	}
}

func TestValidationResult(t *testing.T) {
	pass := &model.ValidationResult{Status: model.ValidationPass}
	gt.NoError(t, pass.Validate())
	gt.True(t, pass.Passed())

	fail := &model.ValidationResult{Status: model.ValidationFail}
	gt.NoError(t, fail.Validate())
	gt.False(t, fail.Passed())

	err := (&model.ValidationResult{Status: "MAYBE"}).Validate()
	gt.True(t, errors.Is(err, model.ErrInvalidValidationStatus))
}

func TestNewMessages(t *testing.T) {
	now := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

	user := model.NewUserMessage("hello", now)
	gt.Equal(t, user.Role, model.RoleUser)
	gt.Equal(t, user.Content, "hello")
	gt.True(t, user.Timestamp.Equal(now))
	gt.True(t, user.IsUser())
	gt.NotEqual(t, user.ID, "")

	resp := &model.ChatResponse{
		Response:  "Your portfolio is worth $1M",
		Sources:   []model.Source{{Type: model.SourceTypeDocument, Name: "statement"}},
		SessionID: "s1",
		Metadata:  &model.Metadata{AgentUsed: "portfolio", ResponseTime: 1.5},
	}
	reply := model.NewAssistantMessage(resp, now)
	gt.Equal(t, reply.Role, model.RoleAssistant)
	gt.Equal(t, reply.Content, resp.Response)
	gt.A(t, reply.Sources).Length(1)
	gt.Equal(t, reply.Metadata.AgentUsed, "portfolio")
	gt.False(t, reply.IsUser())
	gt.NotEqual(t, reply.ID, user.ID)
}

func TestChatMessageClone(t *testing.T) {
	orig := model.ChatMessage{
		ID:         "m1",
		Role:       model.RoleAssistant,
		Content:    "reply",
		Sources:    []model.Source{{Type: model.SourceTypeURL, Name: "a", URL: "https://a"}},
		Validation: &model.ValidationResult{Status: model.ValidationFail, Discrepancies: []string{"x"}},
		Chart:      &model.ChartInfo{URL: "https://chart", Title: "c"},
		Metadata:   &model.Metadata{AgentUsed: "fees"},
	}

	c := orig.Clone()
	c.Sources[0].Name = "changed"
	c.Validation.Discrepancies[0] = "changed"
	c.Chart.Title = "changed"
	c.Metadata.AgentUsed = "changed"

	gt.Equal(t, orig.Sources[0].Name, "a")
	gt.Equal(t, orig.Validation.Discrepancies[0], "x")
	gt.Equal(t, orig.Chart.Title, "c")
	gt.Equal(t, orig.Metadata.AgentUsed, "fees")
}
