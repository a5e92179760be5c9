package main

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

const (
	serverName    = "Vocab Drill MCP"
	serverVersion = "1.0.0"
)

const vocabDrillServerInfo = `
This is a vocabulary drill server with three study modes.

1. CHOOSING A SESSION:
   - flashcard: practice over everything in a set, new and due words first
   - test: a quiz restricted by difficulty and mastery ranges
   - review: words seen before, most urgent first

2. RUNNING A SESSION:
   - Call the schedule tool for the chosen mode and present words in the returned order
   - Show the term first and only reveal the translation after the learner answers

3. RECORDING ANSWERS:
   - Call submit_answer after every word with result correct, wrong or skip
   - Pass the same mode that produced the session
   - Include a grade from 0 to 5 when the quality of recall is clear
   - Include the response time in milliseconds when it is known

4. TRACKING PROGRESS:
   - get_stats shows new, due and mastered counts plus today's accuracy
   - The vocab://sets resource lists every set with its progress
`

// toolHandler is the signature shared by every tool handler in this package
type toolHandler func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error)

// bind makes the service available to a handler through the request context
func bind(svc *DrillService, h toolHandler) server.ToolHandlerFunc {
	return func(reqCtx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return h(withService(reqCtx, svc), request)
	}
}

func setIDOption(desc string) mcp.ToolOption {
	return mcp.WithNumber("set_id", mcp.Description(desc))
}

func limitOption() mcp.ToolOption {
	return mcp.WithNumber("limit",
		mcp.Description("Maximum number of words to return. 0 uses the mode default, a negative value returns everything"),
	)
}

func explainOption() mcp.ToolOption {
	return mcp.WithBoolean("explain",
		mcp.Description("Include the computed weight of every returned word"),
	)
}

// newMCPServer creates the MCP server and registers every tool and resource
func newMCPServer(svc *DrillService) *server.MCPServer {
	s := server.NewMCPServer(
		serverName,
		serverVersion,
		server.WithInstructions(vocabDrillServerInfo),
		server.WithResourceCapabilities(true, true),
		server.WithToolCapabilities(true),
		server.WithLogging(),
	)

	scheduleFlashcardTool := mcp.NewTool("schedule_flashcard",
		mcp.WithDescription("Order the words of a set for a flashcard session. New and due words get a boost."),
		setIDOption("Set to schedule. 0 or absent schedules every word"),
		limitOption(),
		mcp.WithBoolean("exclude_new", mcp.Description("Skip words that were never seen")),
		mcp.WithBoolean("exclude_due", mcp.Description("Skip words that are due for review")),
		mcp.WithBoolean("exclude_mastered", mcp.Description("Skip well known words")),
		mcp.WithNumber("mastery_threshold",
			mcp.Description("Mastery at or above which a word counts as mastered when exclude_mastered is set. Never below 0.9"),
		),
		explainOption(),
	)

	scheduleTestTool := mcp.NewTool("schedule_test",
		mcp.WithDescription("Order the words of a set for a test session filtered by difficulty and mastery."),
		setIDOption("Set to schedule. 0 or absent schedules every word"),
		limitOption(),
		mcp.WithNumber("difficulty_min", mcp.Description("Lowest difficulty to include, 1-5")),
		mcp.WithNumber("difficulty_max", mcp.Description("Highest difficulty to include, 1-5")),
		mcp.WithNumber("mastery_min", mcp.Description("Lowest mastery to include, 0-1")),
		mcp.WithNumber("mastery_max", mcp.Description("Highest mastery to include, 0-1")),
		mcp.WithBoolean("include_too_easy", mcp.Description("Keep words the learner already finds too easy")),
		mcp.WithBoolean("exclude_too_hard", mcp.Description("Drop words the learner keeps failing")),
		explainOption(),
	)

	scheduleReviewTool := mcp.NewTool("schedule_review",
		mcp.WithDescription("Order previously seen words for a review session, most urgent first."),
		setIDOption("Set to schedule. 0 or absent schedules every word"),
		limitOption(),
		mcp.WithBoolean("only_due", mcp.Description("Only include words that are due or have low mastery")),
		mcp.WithNumber("urgency_threshold", mcp.Description("Urgency above which a word counts as urgent. Defaults to 0.5")),
		explainOption(),
	)

	submitAnswerTool := mcp.NewTool("submit_answer",
		mcp.WithDescription("Record the learner's answer to one word and update its progress."),
		mcp.WithNumber("word_id",
			mcp.Required(),
			mcp.Description("The ID of the word that was answered"),
		),
		mcp.WithString("result",
			mcp.Required(),
			mcp.Enum("correct", "wrong", "skip"),
			mcp.Description("Outcome of the answer"),
		),
		mcp.WithString("mode",
			mcp.Required(),
			mcp.Enum("flashcard", "test", "review"),
			mcp.Description("Mode of the session the answer belongs to"),
		),
		mcp.WithNumber("grade",
			mcp.Description("Recall quality from 0 (blackout) to 5 (perfect)"),
		),
		mcp.WithNumber("response_time_ms",
			mcp.Description("Time the learner took to answer in milliseconds"),
		),
	)

	createWordTool := mcp.NewTool("create_word",
		mcp.WithDescription("Add a word to a set."),
		mcp.WithNumber("set_id", mcp.Required(), mcp.Description("Set the word belongs to")),
		mcp.WithString("term", mcp.Required(), mcp.Description("The word being learned")),
		mcp.WithString("translation", mcp.Required(), mcp.Description("Its translation")),
		mcp.WithNumber("difficulty", mcp.Description("Difficulty rating from 1 to 5")),
	)

	deleteWordTool := mcp.NewTool("delete_word",
		mcp.WithDescription("Delete a word and its progress. Review history is kept."),
		mcp.WithNumber("word_id", mcp.Required(), mcp.Description("The ID of the word to delete")),
	)

	listWordsTool := mcp.NewTool("list_words",
		mcp.WithDescription("List the words of a set with their learning state."),
		setIDOption("Set to list. 0 or absent lists every word"),
	)

	getStatsTool := mcp.NewTool("get_stats",
		mcp.WithDescription("Summarize learning progress and today's accuracy."),
		setIDOption("Set to summarize. 0 or absent covers every word"),
	)

	s.AddTool(scheduleFlashcardTool, bind(svc, handleScheduleFlashcard))
	s.AddTool(scheduleTestTool, bind(svc, handleScheduleTest))
	s.AddTool(scheduleReviewTool, bind(svc, handleScheduleReview))
	s.AddTool(submitAnswerTool, bind(svc, handleSubmitAnswer))
	s.AddTool(createWordTool, bind(svc, handleCreateWord))
	s.AddTool(deleteWordTool, bind(svc, handleDeleteWord))
	s.AddTool(listWordsTool, bind(svc, handleListWords))
	s.AddTool(getStatsTool, bind(svc, handleGetStats))

	setsResource := mcp.NewResource("vocab://sets", "Vocabulary sets",
		mcp.WithResourceDescription("Every vocabulary set with word, seen and mastered counts"),
		mcp.WithMIMEType("application/json"),
	)
	s.AddResource(setsResource, func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		return handleSetsResource(withService(ctx, svc), request)
	})

	return s
}
