package main

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/danieldreier/vocab-drill/internal/models"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// callTool invokes a handler directly and decodes its JSON text into out
func callTool(t *testing.T, s *DrillService, handler toolHandler, args map[string]interface{}, out interface{}) {
	t.Helper()
	req := mcp.CallToolRequest{}
	req.Params.Arguments = args

	result, err := handler(withService(context.Background(), s), req)
	require.NoError(t, err, "Handler should not return an error")
	require.NotNil(t, result)
	require.Len(t, result.Content, 1)

	textContent, ok := mcp.AsTextContent(result.Content[0])
	require.True(t, ok, "Expected TextContent, got %T", result.Content[0])
	require.NoError(t, json.Unmarshal([]byte(textContent.Text), out), "Failed to parse %s", textContent.Text)
}

func TestHandleCreateWord(t *testing.T) {
	service, _ := setupTestService(t)

	var resp WordResponse
	callTool(t, service, handleCreateWord, map[string]interface{}{
		"set_id":      float64(3),
		"term":        "Baum",
		"translation": "tree",
		"difficulty":  float64(4),
	}, &resp)
	require.True(t, resp.Success, resp.Error)
	require.NotNil(t, resp.Word)
	assert.Equal(t, int64(3), resp.Word.SetID)
	assert.Equal(t, "Baum", resp.Word.Term)
	require.NotNil(t, resp.Word.Difficulty)
	assert.Equal(t, 4, *resp.Word.Difficulty)

	var missing map[string]interface{}
	callTool(t, service, handleCreateWord, map[string]interface{}{"set_id": float64(3)}, &missing)
	assert.Equal(t, false, missing["success"])
	assert.Contains(t, missing["error"], "term")

	var invalid WordResponse
	callTool(t, service, handleCreateWord, map[string]interface{}{
		"set_id":      float64(3),
		"term":        "Ast",
		"translation": "branch",
		"difficulty":  float64(9),
	}, &invalid)
	assert.False(t, invalid.Success)
	assert.Contains(t, invalid.Error, "difficulty")
}

func TestHandleSubmitAnswer(t *testing.T) {
	service, _ := setupTestService(t)
	ids := addWords(t, service, 1, 1)

	var resp AnswerResponse
	callTool(t, service, handleSubmitAnswer, map[string]interface{}{
		"word_id":          float64(ids[0]),
		"result":           "correct",
		"mode":             "test",
		"grade":            float64(5),
		"response_time_ms": float64(1500),
	}, &resp)
	require.True(t, resp.Success, resp.Error)
	require.NotNil(t, resp.Progress)
	assert.Equal(t, 1, resp.Progress.TimesSeen)
	assert.Equal(t, 1, resp.Progress.TimesCorrect)
	assert.Equal(t, models.Quiz, resp.Progress.LastMode)
	assert.Equal(t, 1500.0, resp.Progress.AverageResponseTime)

	tests := []struct {
		name string
		args map[string]interface{}
		want string
	}{
		{
			name: "missing word id",
			args: map[string]interface{}{"result": "correct", "mode": "flashcard"},
			want: "word_id",
		},
		{
			name: "bad mode",
			args: map[string]interface{}{"word_id": float64(ids[0]), "result": "correct", "mode": "exam"},
			want: "mode",
		},
		{
			name: "bad result",
			args: map[string]interface{}{"word_id": float64(ids[0]), "result": "maybe", "mode": "review"},
			want: "result",
		},
		{
			name: "unknown word",
			args: map[string]interface{}{"word_id": float64(999), "result": "wrong", "mode": "review"},
			want: "not found",
		},
		{
			name: "fractional word id",
			args: map[string]interface{}{"word_id": float64(ids[0]) + 0.7, "result": "wrong", "mode": "review"},
			want: "word_id",
		},
		{
			name: "fractional grade",
			args: map[string]interface{}{"word_id": float64(ids[0]), "result": "correct", "mode": "review", "grade": 4.5},
			want: "grade",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var out map[string]interface{}
			callTool(t, service, handleSubmitAnswer, tc.args, &out)
			assert.Equal(t, false, out["success"])
			assert.Contains(t, out["error"], tc.want)
		})
	}

	// none of the rejected calls reached the word
	rec, err := service.Store.GetProgress(context.Background(), ids[0])
	require.NoError(t, err)
	assert.Equal(t, 1, rec.TimesSeen)
}

func TestHandlersRejectFractionalIntegers(t *testing.T) {
	service, _ := setupTestService(t)
	ids := addWords(t, service, 1, 2)

	tests := []struct {
		name    string
		handler toolHandler
		args    map[string]interface{}
		want    string
	}{
		{"delete word", handleDeleteWord, map[string]interface{}{"word_id": float64(ids[0]) + 0.5}, "word_id"},
		{"create word set", handleCreateWord, map[string]interface{}{"set_id": 1.25, "term": "Haus"}, "set_id"},
		{"create word difficulty", handleCreateWord, map[string]interface{}{"set_id": float64(1), "term": "Haus", "difficulty": 2.5}, "difficulty"},
		{"flashcard limit", handleScheduleFlashcard, map[string]interface{}{"limit": 2.5}, "limit"},
		{"test difficulty range", handleScheduleTest, map[string]interface{}{"difficulty_min": 1.5}, "difficulty_min"},
		{"review set", handleScheduleReview, map[string]interface{}{"set_id": 0.5}, "set_id"},
		{"list words set", handleListWords, map[string]interface{}{"set_id": 1.1}, "set_id"},
		{"stats set", handleGetStats, map[string]interface{}{"set_id": 1.9}, "set_id"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var out map[string]interface{}
			callTool(t, service, tc.handler, tc.args, &out)
			assert.Equal(t, false, out["success"])
			assert.Contains(t, out["error"], tc.want)
			assert.Contains(t, out["error"], "not an integer")
		})
	}

	words, err := service.ListWords(context.Background(), 1)
	require.NoError(t, err)
	assert.Len(t, words, 2, "no word was deleted or created")
}

func TestHandleScheduleTools(t *testing.T) {
	service, _ := setupTestService(t)
	ids := addWords(t, service, 1, 4)

	var fc ScheduleResponse
	callTool(t, service, handleScheduleFlashcard, map[string]interface{}{
		"set_id":  float64(1),
		"limit":   float64(3),
		"explain": true,
	}, &fc)
	require.True(t, fc.Success, fc.Error)
	assert.Equal(t, models.Drill, fc.Mode)
	require.NotNil(t, fc.Flashcard)
	assert.Len(t, fc.Flashcard.OrderedIDs, 3)
	assert.Len(t, fc.Flashcard.Weights, 3)
	assert.Equal(t, 4, fc.Flashcard.TotalEligible)

	// every word has the default difficulty of 3
	var quiz ScheduleResponse
	callTool(t, service, handleScheduleTest, map[string]interface{}{
		"set_id":         float64(1),
		"difficulty_min": float64(4),
	}, &quiz)
	require.True(t, quiz.Success, quiz.Error)
	require.NotNil(t, quiz.Quiz)
	assert.Empty(t, quiz.Quiz.OrderedIDs)

	callTool(t, service, handleScheduleTest, map[string]interface{}{
		"set_id":         float64(1),
		"difficulty_max": float64(3),
	}, &quiz)
	require.True(t, quiz.Success, quiz.Error)
	assert.ElementsMatch(t, ids, quiz.Quiz.OrderedIDs)

	var review ScheduleResponse
	callTool(t, service, handleScheduleReview, map[string]interface{}{"only_due": true}, &review)
	require.True(t, review.Success, review.Error)
	require.NotNil(t, review.Review)
	assert.Empty(t, review.Review.OrderedIDs)
}

func TestHandleListWordsAndStats(t *testing.T) {
	service, _ := setupTestService(t)
	ids := addWords(t, service, 1, 2)
	addWords(t, service, 2, 1)

	var answer AnswerResponse
	callTool(t, service, handleSubmitAnswer, map[string]interface{}{
		"word_id": float64(ids[0]),
		"result":  "correct",
		"mode":    "flashcard",
	}, &answer)
	require.True(t, answer.Success, answer.Error)

	var list ListWordsResponse
	callTool(t, service, handleListWords, map[string]interface{}{"set_id": float64(1)}, &list)
	require.True(t, list.Success, list.Error)
	require.Len(t, list.Words, 2)
	assert.Equal(t, 1, list.Words[0].TimesSeen)
	assert.Equal(t, 0, list.Words[1].TimesSeen)

	var stats StatsResponse
	callTool(t, service, handleGetStats, map[string]interface{}{}, &stats)
	require.True(t, stats.Success, stats.Error)
	require.NotNil(t, stats.Stats)
	assert.Equal(t, 3, stats.Stats.TotalWords)
	assert.Equal(t, 2, stats.Stats.NewWords)
	assert.Equal(t, 1, stats.Stats.ReviewedToday)
	assert.Equal(t, 1.0, stats.Stats.AccuracyToday)
}

func TestHandleDeleteWord(t *testing.T) {
	service, _ := setupTestService(t)
	ids := addWords(t, service, 1, 1)

	var out map[string]interface{}
	callTool(t, service, handleDeleteWord, map[string]interface{}{"word_id": float64(ids[0])}, &out)
	assert.Equal(t, true, out["success"])

	out = nil
	callTool(t, service, handleDeleteWord, map[string]interface{}{"word_id": float64(ids[0])}, &out)
	assert.Equal(t, false, out["success"])
	assert.Contains(t, out["error"], "not found")
}

func TestHandlerWithoutService(t *testing.T) {
	req := mcp.CallToolRequest{}
	result, err := handleGetStats(context.Background(), req)
	require.NoError(t, err)

	textContent, ok := mcp.AsTextContent(result.Content[0])
	require.True(t, ok)
	assert.Contains(t, textContent.Text, "service not available")
}

func TestSetsResource(t *testing.T) {
	service, _ := setupTestService(t)
	addWords(t, service, 7, 2)
	addWords(t, service, 5, 1)

	req := mcp.ReadResourceRequest{}
	req.Params.URI = "vocab://sets"

	contents, err := handleSetsResource(withService(context.Background(), service), req)
	require.NoError(t, err)
	require.Len(t, contents, 1)

	textContent, ok := contents[0].(mcp.TextResourceContents)
	require.True(t, ok, "Expected TextResourceContents, got %T", contents[0])
	assert.Equal(t, "vocab://sets", textContent.URI)
	assert.Equal(t, "application/json", textContent.MIMEType)

	var sets []SetSummary
	require.NoError(t, json.Unmarshal([]byte(textContent.Text), &sets))
	assert.Equal(t, []SetSummary{
		{SetID: 5, Words: 1},
		{SetID: 7, Words: 2},
	}, sets)

	_, err = handleSetsResource(context.Background(), req)
	assert.Error(t, err, "Resource needs a service in the context")
}

func TestNewMCPServerRegistersTools(t *testing.T) {
	service, _ := setupTestService(t)
	s := newMCPServer(service)

	msg := json.RawMessage(`{"jsonrpc":"2.0","id":1,"method":"tools/list","params":{}}`)
	resp := s.HandleMessage(context.Background(), msg)

	raw, err := json.Marshal(resp)
	require.NoError(t, err)

	var decoded struct {
		Result struct {
			Tools []struct {
				Name string `json:"name"`
			} `json:"tools"`
		} `json:"result"`
	}
	require.NoError(t, json.Unmarshal(raw, &decoded), "Failed to parse %s", raw)

	names := make([]string, 0, len(decoded.Result.Tools))
	for _, tool := range decoded.Result.Tools {
		names = append(names, tool.Name)
	}
	assert.ElementsMatch(t, []string{
		"schedule_flashcard",
		"schedule_test",
		"schedule_review",
		"submit_answer",
		"create_word",
		"delete_word",
		"list_words",
		"get_stats",
	}, names)
}

func TestServerInfoInstructions(t *testing.T) {
	service, _ := setupTestService(t)
	s := newMCPServer(service)

	msg := json.RawMessage(`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2024-11-05","clientInfo":{"name":"vocabdrill-test-client","version":"1.0.0"},"capabilities":{}}}`)
	raw, err := json.Marshal(s.HandleMessage(context.Background(), msg))
	require.NoError(t, err)

	var decoded struct {
		Result struct {
			Instructions string `json:"instructions"`
			ServerInfo   struct {
				Name string `json:"name"`
			} `json:"serverInfo"`
		} `json:"result"`
	}
	require.NoError(t, json.Unmarshal(raw, &decoded), "Failed to parse %s", raw)
	assert.Equal(t, serverName, decoded.Result.ServerInfo.Name)

	for _, snippet := range []string{"CHOOSING A SESSION", "RUNNING A SESSION", "RECORDING ANSWERS", "TRACKING PROGRESS", "vocab://sets"} {
		assert.Contains(t, decoded.Result.Instructions, snippet)
	}
}
