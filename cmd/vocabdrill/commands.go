package main

import (
	"fmt"
	"strconv"

	"github.com/danieldreier/vocab-drill/internal/models"
	"github.com/danieldreier/vocab-drill/internal/progress"
	"github.com/danieldreier/vocab-drill/internal/scheduler"
	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newServeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the MCP server on stdio",
		Args:  cobra.NoArgs,
		RunE: a.run(func(cmd *cobra.Command, args []string) error {
			a.logger.Info("Starting MCP server", zap.String("name", serverName), zap.String("version", serverVersion))
			if err := server.ServeStdio(newMCPServer(a.svc)); err != nil {
				a.logger.Error("Error serving MCP server", zap.Error(err))
				return fmt.Errorf("error serving MCP server: %w", err)
			}
			return nil
		}),
	}
}

type scheduleFlags struct {
	setID   int64
	limit   int
	explain bool

	excludeNew       bool
	excludeDue       bool
	excludeMastered  bool
	masteryThreshold float64

	difficultyMin  int
	difficultyMax  int
	masteryMin     float64
	masteryMax     float64
	includeTooEasy bool
	excludeTooHard bool

	onlyDue          bool
	urgencyThreshold float64
}

func newScheduleCmd(a *app) *cobra.Command {
	var f scheduleFlags
	cmd := &cobra.Command{
		Use:       "schedule <flashcard|test|review>",
		Short:     "Order words for a study session",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"flashcard", "test", "review"},
	}
	cmd.RunE = a.run(func(cmd *cobra.Command, args []string) error {
		mode, err := models.ParseMode(args[0])
		if err != nil {
			return err
		}

		fc := scheduler.FlashcardOptions{
			SetID:            f.setID,
			Limit:            f.limit,
			ExcludeNew:       f.excludeNew,
			ExcludeDue:       f.excludeDue,
			ExcludeMastered:  f.excludeMastered,
			MasteryThreshold: f.masteryThreshold,
			Explain:          f.explain,
		}
		quiz := scheduler.QuizOptions{
			SetID:          f.setID,
			Limit:          f.limit,
			IncludeTooEasy: f.includeTooEasy,
			ExcludeTooHard: f.excludeTooHard,
			Explain:        f.explain,
		}
		flags := cmd.Flags()
		if flags.Changed("difficulty-min") || flags.Changed("difficulty-max") {
			quiz.DifficultyRange = &scheduler.IntRange{Min: f.difficultyMin, Max: f.difficultyMax}
		}
		if flags.Changed("mastery-min") || flags.Changed("mastery-max") {
			quiz.MasteryRange = &scheduler.FloatRange{Min: f.masteryMin, Max: f.masteryMax}
		}
		review := scheduler.ReviewOptions{
			SetID:            f.setID,
			Limit:            f.limit,
			OnlyDue:          f.onlyDue,
			UrgencyThreshold: f.urgencyThreshold,
			Explain:          f.explain,
		}

		resp := a.svc.Schedule(cmd.Context(), mode, fc, quiz, review)
		return respond(cmd, resp, resp.Success, resp.Error)
	})

	flags := cmd.Flags()
	flags.Int64Var(&f.setID, "set", 0, "Set to schedule (0 for every word)")
	flags.IntVar(&f.limit, "limit", 0, "Maximum words to return (0 for the mode default, negative for all)")
	flags.BoolVar(&f.explain, "explain", false, "Include the weight of every returned word")

	flags.BoolVar(&f.excludeNew, "exclude-new", false, "flashcard: skip words never seen")
	flags.BoolVar(&f.excludeDue, "exclude-due", false, "flashcard: skip words due for review")
	flags.BoolVar(&f.excludeMastered, "exclude-mastered", false, "flashcard: skip well known words")
	flags.Float64Var(&f.masteryThreshold, "mastery-threshold", 0, "flashcard: mastery that counts as mastered (at least 0.9)")

	flags.IntVar(&f.difficultyMin, "difficulty-min", 1, "test: lowest difficulty")
	flags.IntVar(&f.difficultyMax, "difficulty-max", 5, "test: highest difficulty")
	flags.Float64Var(&f.masteryMin, "mastery-min", 0, "test: lowest mastery")
	flags.Float64Var(&f.masteryMax, "mastery-max", 1, "test: highest mastery")
	flags.BoolVar(&f.includeTooEasy, "include-too-easy", false, "test: keep words that are too easy")
	flags.BoolVar(&f.excludeTooHard, "exclude-too-hard", false, "test: drop words that are too hard")

	flags.BoolVar(&f.onlyDue, "only-due", false, "review: only due or weak words")
	flags.Float64Var(&f.urgencyThreshold, "urgency-threshold", 0, "review: urgency above which a word is urgent (0 for 0.5)")
	return cmd
}

func newAnswerCmd(a *app) *cobra.Command {
	var (
		modeName   string
		grade      int
		responseMs int
	)
	cmd := &cobra.Command{
		Use:   "answer <word-id> <correct|wrong|skip>",
		Short: "Record the answer to one word",
		Args:  cobra.ExactArgs(2),
	}
	cmd.RunE = a.run(func(cmd *cobra.Command, args []string) error {
		wordID, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid word id %q: %w", args[0], err)
		}
		mode, err := models.ParseMode(modeName)
		if err != nil {
			return err
		}

		answer := progress.Answer{
			WordID: wordID,
			Result: models.Result(args[1]),
			Mode:   mode,
		}
		if cmd.Flags().Changed("grade") {
			answer.Grade = &grade
		}
		if cmd.Flags().Changed("response-ms") {
			answer.ResponseTimeMs = &responseMs
		}

		resp := a.svc.SubmitAnswer(cmd.Context(), answer)
		return respond(cmd, resp, resp.Success, resp.Error)
	})

	flags := cmd.Flags()
	flags.StringVar(&modeName, "mode", "flashcard", "Mode the answer was given in (flashcard, test or review)")
	flags.IntVar(&grade, "grade", 0, "Recall quality from 0 to 5")
	flags.IntVar(&responseMs, "response-ms", 0, "Response time in milliseconds")
	return cmd
}

func newAddCmd(a *app) *cobra.Command {
	var (
		item       models.Item
		difficulty int
	)
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a word to a set",
		Args:  cobra.NoArgs,
	}
	cmd.RunE = a.run(func(cmd *cobra.Command, args []string) error {
		if cmd.Flags().Changed("difficulty") {
			item.Difficulty = &difficulty
		}
		word, err := a.svc.CreateWord(cmd.Context(), item)
		if err != nil {
			return respond(cmd, WordResponse{Success: false, Error: err.Error()}, false, err.Error())
		}
		return writeJSON(cmd, WordResponse{Success: true, Word: &word})
	})

	flags := cmd.Flags()
	flags.Int64Var(&item.SetID, "set", 0, "Set the word belongs to")
	flags.StringVar(&item.Term, "term", "", "The word being learned")
	flags.StringVar(&item.Translation, "translation", "", "Its translation")
	flags.IntVar(&difficulty, "difficulty", 3, "Difficulty from 1 to 5")
	_ = cmd.MarkFlagRequired("set")
	_ = cmd.MarkFlagRequired("term")
	_ = cmd.MarkFlagRequired("translation")
	return cmd
}

func newListCmd(a *app) *cobra.Command {
	var setID int64
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List words with their learning state",
		Args:  cobra.NoArgs,
	}
	cmd.RunE = a.run(func(cmd *cobra.Command, args []string) error {
		words, err := a.svc.ListWords(cmd.Context(), setID)
		if err != nil {
			return respond(cmd, ListWordsResponse{Success: false, Words: []WordInfo{}, Error: err.Error()}, false, err.Error())
		}
		return writeJSON(cmd, ListWordsResponse{Success: true, Words: words})
	})
	cmd.Flags().Int64Var(&setID, "set", 0, "Set to list (0 for every word)")
	return cmd
}

func newStatsCmd(a *app) *cobra.Command {
	var setID int64
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show progress statistics",
		Args:  cobra.NoArgs,
	}
	cmd.RunE = a.run(func(cmd *cobra.Command, args []string) error {
		stats, err := a.svc.Stats(cmd.Context(), setID)
		if err != nil {
			return respond(cmd, StatsResponse{Success: false, Error: err.Error()}, false, err.Error())
		}
		return writeJSON(cmd, StatsResponse{Success: true, Stats: &stats})
	})
	cmd.Flags().Int64Var(&setID, "set", 0, "Set to summarize (0 for every word)")
	return cmd
}
