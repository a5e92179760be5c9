package main

import (
	"context"
	"encoding/json"
	"fmt"
	"math"

	"github.com/danieldreier/vocab-drill/internal/models"
	"github.com/danieldreier/vocab-drill/internal/progress"
	"github.com/danieldreier/vocab-drill/internal/scheduler"
	"github.com/mark3labs/mcp-go/mcp"
)

type serviceKey struct{}

// withService attaches the service to a request context
func withService(ctx context.Context, s *DrillService) context.Context {
	return context.WithValue(ctx, serviceKey{}, s)
}

func serviceFrom(ctx context.Context) (*DrillService, bool) {
	s, ok := ctx.Value(serviceKey{}).(*DrillService)
	return s, ok && s != nil
}

// jsonResult wraps a response as indented JSON text
func jsonResult(v interface{}) (*mcp.CallToolResult, error) {
	jsonBytes, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(string(jsonBytes)), nil
}

func errorResult(format string, args ...interface{}) (*mcp.CallToolResult, error) {
	return jsonResult(map[string]interface{}{
		"success": false,
		"error":   fmt.Sprintf(format, args...),
	})
}

// JSON numbers arrive as float64

// integerArgs are the tool parameters that only take whole numbers
var integerArgs = []string{
	"set_id", "word_id", "limit", "grade", "response_time_ms",
	"difficulty", "difficulty_min", "difficulty_max",
}

// checkIntegers rejects a fractional value for any integer parameter, so
// word_id 1.7 is an error rather than word 1
func checkIntegers(args map[string]interface{}) error {
	for _, name := range integerArgs {
		if v, ok := args[name].(float64); ok && v != math.Trunc(v) {
			return fmt.Errorf("invalid parameter %s: %v is not an integer", name, v)
		}
	}
	return nil
}

func numberArg(args map[string]interface{}, name string) (float64, bool) {
	v, ok := args[name].(float64)
	return v, ok
}

func int64Arg(args map[string]interface{}, name string) (int64, bool) {
	v, ok := numberArg(args, name)
	if !ok || v != math.Trunc(v) {
		return 0, false
	}
	return int64(v), true
}

func intArg(args map[string]interface{}, name string) (int, bool) {
	v, ok := int64Arg(args, name)
	return int(v), ok
}

func boolArg(args map[string]interface{}, name string) bool {
	v, _ := args[name].(bool)
	return v
}

func intPtrArg(args map[string]interface{}, name string) *int {
	v, ok := intArg(args, name)
	if !ok {
		return nil
	}
	return &v
}

// handleScheduleFlashcard handles the schedule_flashcard tool
func handleScheduleFlashcard(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s, ok := serviceFrom(ctx)
	if !ok {
		return errorResult("service not available")
	}
	args := request.Params.Arguments
	if err := checkIntegers(args); err != nil {
		return errorResult("%v", err)
	}

	opts := scheduler.FlashcardOptions{
		ExcludeNew:      boolArg(args, "exclude_new"),
		ExcludeDue:      boolArg(args, "exclude_due"),
		ExcludeMastered: boolArg(args, "exclude_mastered"),
		Explain:         boolArg(args, "explain"),
	}
	opts.SetID, _ = int64Arg(args, "set_id")
	opts.Limit, _ = intArg(args, "limit")
	opts.MasteryThreshold, _ = numberArg(args, "mastery_threshold")

	return jsonResult(s.Schedule(ctx, models.Drill, opts, scheduler.QuizOptions{}, scheduler.ReviewOptions{}))
}

// handleScheduleTest handles the schedule_test tool. Range bounds that are
// not given keep their defaults.
func handleScheduleTest(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s, ok := serviceFrom(ctx)
	if !ok {
		return errorResult("service not available")
	}
	args := request.Params.Arguments
	if err := checkIntegers(args); err != nil {
		return errorResult("%v", err)
	}

	opts := scheduler.QuizOptions{
		IncludeTooEasy: boolArg(args, "include_too_easy"),
		ExcludeTooHard: boolArg(args, "exclude_too_hard"),
		Explain:        boolArg(args, "explain"),
	}
	opts.SetID, _ = int64Arg(args, "set_id")
	opts.Limit, _ = intArg(args, "limit")

	dMin, hasDMin := intArg(args, "difficulty_min")
	dMax, hasDMax := intArg(args, "difficulty_max")
	if hasDMin || hasDMax {
		r := scheduler.IntRange{Min: 1, Max: 5}
		if hasDMin {
			r.Min = dMin
		}
		if hasDMax {
			r.Max = dMax
		}
		opts.DifficultyRange = &r
	}

	mMin, hasMMin := numberArg(args, "mastery_min")
	mMax, hasMMax := numberArg(args, "mastery_max")
	if hasMMin || hasMMax {
		r := scheduler.FloatRange{Min: 0, Max: 1}
		if hasMMin {
			r.Min = mMin
		}
		if hasMMax {
			r.Max = mMax
		}
		opts.MasteryRange = &r
	}

	return jsonResult(s.Schedule(ctx, models.Quiz, scheduler.FlashcardOptions{}, opts, scheduler.ReviewOptions{}))
}

// handleScheduleReview handles the schedule_review tool
func handleScheduleReview(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s, ok := serviceFrom(ctx)
	if !ok {
		return errorResult("service not available")
	}
	args := request.Params.Arguments
	if err := checkIntegers(args); err != nil {
		return errorResult("%v", err)
	}

	opts := scheduler.ReviewOptions{
		OnlyDue: boolArg(args, "only_due"),
		Explain: boolArg(args, "explain"),
	}
	opts.SetID, _ = int64Arg(args, "set_id")
	opts.Limit, _ = intArg(args, "limit")
	opts.UrgencyThreshold, _ = numberArg(args, "urgency_threshold")

	return jsonResult(s.Schedule(ctx, models.Review, scheduler.FlashcardOptions{}, scheduler.QuizOptions{}, opts))
}

// handleSubmitAnswer handles the submit_answer tool. Failures, including
// unknown words, come back as {"success": false, "error": ...}.
func handleSubmitAnswer(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s, ok := serviceFrom(ctx)
	if !ok {
		return errorResult("service not available")
	}
	args := request.Params.Arguments
	if err := checkIntegers(args); err != nil {
		return errorResult("%v", err)
	}

	wordID, ok := int64Arg(args, "word_id")
	if !ok {
		return errorResult("missing required parameter: word_id")
	}
	result, _ := args["result"].(string)
	modeName, _ := args["mode"].(string)
	mode, err := models.ParseMode(modeName)
	if err != nil {
		return errorResult("invalid mode: %v", err)
	}

	answer := progress.Answer{
		WordID:         wordID,
		Result:         models.Result(result),
		Mode:           mode,
		Grade:          intPtrArg(args, "grade"),
		ResponseTimeMs: intPtrArg(args, "response_time_ms"),
	}
	return jsonResult(s.SubmitAnswer(ctx, answer))
}

// handleCreateWord handles the create_word tool
func handleCreateWord(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s, ok := serviceFrom(ctx)
	if !ok {
		return errorResult("service not available")
	}
	args := request.Params.Arguments
	if err := checkIntegers(args); err != nil {
		return errorResult("%v", err)
	}

	setID, ok := int64Arg(args, "set_id")
	if !ok {
		return errorResult("missing required parameter: set_id")
	}
	term, ok := args["term"].(string)
	if !ok || term == "" {
		return errorResult("missing required parameter: term")
	}
	translation, _ := args["translation"].(string)

	word, err := s.CreateWord(ctx, models.Item{
		SetID:       setID,
		Term:        term,
		Translation: translation,
		Difficulty:  intPtrArg(args, "difficulty"),
	})
	if err != nil {
		return jsonResult(WordResponse{Success: false, Error: err.Error()})
	}
	return jsonResult(WordResponse{Success: true, Word: &word})
}

// handleDeleteWord handles the delete_word tool
func handleDeleteWord(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s, ok := serviceFrom(ctx)
	if !ok {
		return errorResult("service not available")
	}
	args := request.Params.Arguments
	if err := checkIntegers(args); err != nil {
		return errorResult("%v", err)
	}
	wordID, ok := int64Arg(args, "word_id")
	if !ok {
		return errorResult("missing required parameter: word_id")
	}
	if err := s.DeleteWord(ctx, wordID); err != nil {
		return errorResult("%v", err)
	}
	return jsonResult(map[string]interface{}{"success": true})
}

// handleListWords handles the list_words tool
func handleListWords(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s, ok := serviceFrom(ctx)
	if !ok {
		return errorResult("service not available")
	}
	args := request.Params.Arguments
	if err := checkIntegers(args); err != nil {
		return errorResult("%v", err)
	}
	setID, _ := int64Arg(args, "set_id")

	words, err := s.ListWords(ctx, setID)
	if err != nil {
		return jsonResult(ListWordsResponse{Success: false, Words: []WordInfo{}, Error: err.Error()})
	}
	return jsonResult(ListWordsResponse{Success: true, Words: words})
}

// handleGetStats handles the get_stats tool
func handleGetStats(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s, ok := serviceFrom(ctx)
	if !ok {
		return errorResult("service not available")
	}
	args := request.Params.Arguments
	if err := checkIntegers(args); err != nil {
		return errorResult("%v", err)
	}
	setID, _ := int64Arg(args, "set_id")

	stats, err := s.Stats(ctx, setID)
	if err != nil {
		return jsonResult(StatsResponse{Success: false, Error: err.Error()})
	}
	return jsonResult(StatsResponse{Success: true, Stats: &stats})
}

// handleSetsResource serves vocab://sets
func handleSetsResource(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	s, ok := serviceFrom(ctx)
	if !ok {
		return nil, fmt.Errorf("service not available")
	}

	sets, err := s.Sets(ctx)
	if err != nil {
		return nil, err
	}
	jsonBytes, err := json.MarshalIndent(sets, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("error marshaling sets: %w", err)
	}

	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      request.Params.URI,
			MIMEType: "application/json",
			Text:     string(jsonBytes),
		},
	}, nil
}
