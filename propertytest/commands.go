package propertytest

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"testing"
	"time"

	"github.com/danieldreier/vocab-drill/internal/models"
	"github.com/danieldreier/vocab-drill/internal/progress"
	"github.com/danieldreier/vocab-drill/internal/scheduler"
	"github.com/danieldreier/vocab-drill/internal/sm2"
	"github.com/danieldreier/vocab-drill/internal/storage"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/commands"
	"github.com/leanovate/gopter/gen"
)

// --- State Definition ---

// Word is the model's view of one word
type Word struct {
	ID            int64
	SetID         int64
	TimesSeen     int
	TimesCorrect  int
	CorrectStreak int
	WrongStreak   int
}

// CommandState is the model. Ids are predictable because the file store
// hands them out sequentially and never reuses one.
type CommandState struct {
	Words  map[int64]Word
	IDs    []int64 // live ids in creation order
	NextID int64
	T      *testing.T
}

// NewCommandState returns an empty model
func NewCommandState(t *testing.T) *CommandState {
	return &CommandState{Words: make(map[int64]Word), T: t}
}

func (s *CommandState) deepCopy() *CommandState {
	c := &CommandState{
		Words:  make(map[int64]Word, len(s.Words)),
		IDs:    make([]int64, len(s.IDs)),
		NextID: s.NextID,
		T:      s.T,
	}
	for k, v := range s.Words {
		c.Words[k] = v
	}
	copy(c.IDs, s.IDs)
	return c
}

// inScope reports whether w belongs to setID, where 0 means every set
func inScope(w Word, setID int64) bool {
	return setID == 0 || w.SetID == setID
}

func fail(state *CommandState, label, format string, args ...interface{}) *gopter.PropResult {
	state.T.Logf("%s: "+format, append([]interface{}{label}, args...)...)
	return gopter.NewPropResult(false, label)
}

// --- CreateWordCmd ---

type CreateWordCmd struct {
	SetID      int64
	Difficulty *int
}

func (c *CreateWordCmd) Run(sut commands.SystemUnderTest) commands.Result {
	dSUT := sut.(*DrillSUT)
	item, err := dSUT.Store.CreateItem(context.Background(), models.Item{
		SetID:       c.SetID,
		Term:        fmt.Sprintf("term-%d", c.SetID),
		Translation: "translation",
		Difficulty:  c.Difficulty,
	})
	if err != nil {
		return err
	}
	return item
}

func (c *CreateWordCmd) NextState(state commands.State) commands.State {
	next := state.(*CommandState).deepCopy()
	next.NextID++
	next.Words[next.NextID] = Word{ID: next.NextID, SetID: c.SetID}
	next.IDs = append(next.IDs, next.NextID)
	return next
}

func (c *CreateWordCmd) PreCondition(state commands.State) bool {
	return true
}

func (c *CreateWordCmd) PostCondition(state commands.State, result commands.Result) *gopter.PropResult {
	cmdState := state.(*CommandState)
	label := fmt.Sprintf("PostCondition %s", c.String())
	if err, ok := result.(error); ok {
		return fail(cmdState, label, "create failed: %v", err)
	}
	item, ok := result.(models.Item)
	if !ok {
		return fail(cmdState, label, "unexpected result type %T", result)
	}
	if item.ID != cmdState.NextID {
		return fail(cmdState, label, "expected id %d, got %d", cmdState.NextID, item.ID)
	}
	if item.SetID != c.SetID {
		return fail(cmdState, label, "expected set %d, got %d", c.SetID, item.SetID)
	}
	return gopter.NewPropResult(true, label)
}

func (c *CreateWordCmd) String() string {
	if c.Difficulty == nil {
		return fmt.Sprintf("CreateWord(set=%d)", c.SetID)
	}
	return fmt.Sprintf("CreateWord(set=%d, difficulty=%d)", c.SetID, *c.Difficulty)
}

// --- AnswerCmd ---

type AnswerCmd struct {
	Answer progress.Answer
}

func (c *AnswerCmd) Run(sut commands.SystemUnderTest) commands.Result {
	dSUT := sut.(*DrillSUT)
	rec, err := dSUT.Updater.ApplyAnswer(context.Background(), c.Answer)
	if err != nil {
		return err
	}
	return rec
}

func (c *AnswerCmd) NextState(state commands.State) commands.State {
	next := state.(*CommandState).deepCopy()
	w := next.Words[c.Answer.WordID]
	w.TimesSeen++
	switch c.Answer.Result {
	case models.ResultCorrect:
		w.TimesCorrect++
		w.CorrectStreak++
		w.WrongStreak = 0
	case models.ResultWrong:
		w.WrongStreak++
		w.CorrectStreak = 0
	}
	next.Words[w.ID] = w
	return next
}

func (c *AnswerCmd) PreCondition(state commands.State) bool {
	_, ok := state.(*CommandState).Words[c.Answer.WordID]
	return ok
}

func (c *AnswerCmd) PostCondition(state commands.State, result commands.Result) *gopter.PropResult {
	cmdState := state.(*CommandState)
	label := fmt.Sprintf("PostCondition %s", c.String())
	if err, ok := result.(error); ok {
		return fail(cmdState, label, "answer failed: %v", err)
	}
	rec, ok := result.(models.ProgressRecord)
	if !ok {
		return fail(cmdState, label, "unexpected result type %T", result)
	}

	want := cmdState.Words[c.Answer.WordID]
	if rec.TimesSeen != want.TimesSeen || rec.TimesCorrect != want.TimesCorrect ||
		rec.CorrectStreak != want.CorrectStreak || rec.WrongStreak != want.WrongStreak {
		return fail(cmdState, label, "counters diverged from model: got %+v, want %+v", rec, want)
	}
	if msg := checkRecord(rec); msg != "" {
		return fail(cmdState, label, "%s", msg)
	}
	if c.Answer.Result == models.ResultWrong && rec.IsMastered() {
		return fail(cmdState, label, "a wrong answer left the word mastered: %+v", rec)
	}
	if rec.LastMode != c.Answer.Mode || rec.LastResult != c.Answer.Result {
		return fail(cmdState, label, "last mode/result not recorded: %+v", rec)
	}
	return gopter.NewPropResult(true, label)
}

func (c *AnswerCmd) String() string {
	s := fmt.Sprintf("Answer(word=%d, %s, %s", c.Answer.WordID, c.Answer.Result, c.Answer.Mode)
	if c.Answer.Grade != nil {
		s += fmt.Sprintf(", grade=%d", *c.Answer.Grade)
	}
	if c.Answer.ResponseTimeMs != nil {
		s += fmt.Sprintf(", rt=%dms", *c.Answer.ResponseTimeMs)
	}
	return s + ")"
}

// checkRecord returns a description of the first broken record invariant,
// or "" when the record is consistent.
func checkRecord(rec models.ProgressRecord) string {
	switch {
	case rec.TimesCorrect > rec.TimesSeen:
		return fmt.Sprintf("times_correct %d > times_seen %d", rec.TimesCorrect, rec.TimesSeen)
	case rec.CorrectStreak > 0 && rec.WrongStreak > 0:
		return fmt.Sprintf("both streaks positive: %d/%d", rec.CorrectStreak, rec.WrongStreak)
	case rec.EaseFactor < sm2.MinEaseFactor:
		return fmt.Sprintf("ease factor %.2f below %.2f", rec.EaseFactor, sm2.MinEaseFactor)
	case rec.IntervalDays < 0 || rec.Repetitions < 0:
		return fmt.Sprintf("negative interval %d or repetitions %d", rec.IntervalDays, rec.Repetitions)
	case rec.NextReviewAt == nil || rec.LastReviewedAt == nil:
		return "answered record without review dates"
	case rec.NextReviewAt.Before(*rec.LastReviewedAt):
		return fmt.Sprintf("next review %s before last review %s", rec.NextReviewAt, rec.LastReviewedAt)
	}
	return ""
}

// --- DeleteWordCmd ---

type DeleteWordCmd struct {
	WordID int64
}

func (c *DeleteWordCmd) Run(sut commands.SystemUnderTest) commands.Result {
	dSUT := sut.(*DrillSUT)
	ctx := context.Background()
	if err := dSUT.Store.DeleteItem(ctx, c.WordID); err != nil {
		return err
	}
	// the word must be gone for good
	if _, err := dSUT.Store.GetItem(ctx, c.WordID); !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("deleted word still readable: %v", err)
	}
	return true
}

func (c *DeleteWordCmd) NextState(state commands.State) commands.State {
	next := state.(*CommandState).deepCopy()
	delete(next.Words, c.WordID)
	ids := next.IDs[:0]
	for _, id := range next.IDs {
		if id != c.WordID {
			ids = append(ids, id)
		}
	}
	next.IDs = ids
	return next
}

func (c *DeleteWordCmd) PreCondition(state commands.State) bool {
	_, ok := state.(*CommandState).Words[c.WordID]
	return ok
}

func (c *DeleteWordCmd) PostCondition(state commands.State, result commands.Result) *gopter.PropResult {
	label := fmt.Sprintf("PostCondition %s", c.String())
	if err, ok := result.(error); ok {
		return fail(state.(*CommandState), label, "delete failed: %v", err)
	}
	return gopter.NewPropResult(true, label)
}

func (c *DeleteWordCmd) String() string {
	return fmt.Sprintf("DeleteWord(%d)", c.WordID)
}

// --- AdvanceClockCmd ---

type AdvanceClockCmd struct {
	Hours int
}

func (c *AdvanceClockCmd) Run(sut commands.SystemUnderTest) commands.Result {
	sut.(*DrillSUT).Clock.Advance(time.Duration(c.Hours) * time.Hour)
	return true
}

func (c *AdvanceClockCmd) NextState(state commands.State) commands.State {
	return state
}

func (c *AdvanceClockCmd) PreCondition(state commands.State) bool {
	return true
}

func (c *AdvanceClockCmd) PostCondition(state commands.State, result commands.Result) *gopter.PropResult {
	return gopter.NewPropResult(true, fmt.Sprintf("PostCondition %s", c.String()))
}

func (c *AdvanceClockCmd) String() string {
	return fmt.Sprintf("AdvanceClock(%dh)", c.Hours)
}

// --- ScheduleCmd ---

type ScheduleCmd struct {
	Mode  models.Mode
	SetID int64
	Limit int
}

// scheduled is the part of every mode's result the post-condition checks
type scheduled struct {
	ids      []int64
	eligible int
}

func (c *ScheduleCmd) Run(sut commands.SystemUnderTest) commands.Result {
	dSUT := sut.(*DrillSUT)
	ctx := context.Background()
	switch c.Mode {
	case models.Drill:
		res, err := dSUT.Scheduler.ScheduleFlashcard(ctx, scheduler.FlashcardOptions{SetID: c.SetID, Limit: c.Limit})
		if err != nil {
			return err
		}
		return scheduled{ids: res.OrderedIDs, eligible: res.TotalEligible}
	case models.Quiz:
		res, err := dSUT.Scheduler.ScheduleQuiz(ctx, scheduler.QuizOptions{SetID: c.SetID, Limit: c.Limit})
		if err != nil {
			return err
		}
		return scheduled{ids: res.OrderedIDs, eligible: res.TotalEligible}
	default:
		res, err := dSUT.Scheduler.ScheduleReview(ctx, scheduler.ReviewOptions{SetID: c.SetID, Limit: c.Limit})
		if err != nil {
			return err
		}
		return scheduled{ids: res.OrderedIDs, eligible: res.TotalEligible}
	}
}

func (c *ScheduleCmd) NextState(state commands.State) commands.State {
	return state
}

func (c *ScheduleCmd) PreCondition(state commands.State) bool {
	return true
}

func (c *ScheduleCmd) PostCondition(state commands.State, result commands.Result) *gopter.PropResult {
	cmdState := state.(*CommandState)
	label := fmt.Sprintf("PostCondition %s", c.String())
	if err, ok := result.(error); ok {
		return fail(cmdState, label, "schedule failed: %v", err)
	}
	res, ok := result.(scheduled)
	if !ok {
		return fail(cmdState, label, "unexpected result type %T", result)
	}

	inScopeCount := 0
	for _, w := range cmdState.Words {
		if inScope(w, c.SetID) {
			inScopeCount++
		}
	}

	seen := make(map[int64]bool, len(res.ids))
	for _, id := range res.ids {
		w, ok := cmdState.Words[id]
		if !ok {
			return fail(cmdState, label, "scheduled unknown or deleted word %d", id)
		}
		if !inScope(w, c.SetID) {
			return fail(cmdState, label, "word %d from set %d leaked into set %d", id, w.SetID, c.SetID)
		}
		if seen[id] {
			return fail(cmdState, label, "word %d scheduled twice", id)
		}
		seen[id] = true
		if c.Mode == models.Review && w.TimesSeen == 0 {
			return fail(cmdState, label, "review scheduled unseen word %d", id)
		}
	}

	if res.eligible > inScopeCount {
		return fail(cmdState, label, "%d eligible out of %d words in scope", res.eligible, inScopeCount)
	}
	switch {
	case c.Limit > 0 && len(res.ids) > c.Limit:
		return fail(cmdState, label, "returned %d words over limit %d", len(res.ids), c.Limit)
	case c.Limit < 0 && len(res.ids) != res.eligible:
		return fail(cmdState, label, "no limit but returned %d of %d eligible", len(res.ids), res.eligible)
	}
	// a flashcard session without filters covers the whole scope
	if c.Mode == models.Drill && c.Limit < 0 && len(res.ids) != inScopeCount {
		return fail(cmdState, label, "flashcard returned %d of %d words", len(res.ids), inScopeCount)
	}
	return gopter.NewPropResult(true, label)
}

func (c *ScheduleCmd) String() string {
	return fmt.Sprintf("Schedule(%s, set=%d, limit=%d)", c.Mode, c.SetID, c.Limit)
}

// --- Proto Commands ---

var reflectCommandType = reflect.TypeOf((*commands.Command)(nil)).Elem()

// NewProtoCommands wires the commands above to a fresh DrillSUT per run
func NewProtoCommands(t *testing.T) *commands.ProtoCommands {
	return &commands.ProtoCommands{
		NewSystemUnderTestFunc: func(initialState commands.State) commands.SystemUnderTest {
			sut, err := NewDrillSUT(t)
			if err != nil {
				t.Fatalf("Failed to create system under test: %v", err)
			}
			return sut
		},
		DestroySystemUnderTestFunc: func(sut commands.SystemUnderTest) {
			sut.(*DrillSUT).Close()
		},
		InitialStateGen: gen.Const(NewCommandState(t)),
		GenCommandFunc: func(state commands.State) gopter.Gen {
			cmdState := state.(*CommandState)
			weighted := []gen.WeightedGen{
				{Weight: 4, Gen: gopter.CombineGens(GenSetID(), GenDifficulty()).
					Map(func(v []interface{}) commands.Command {
						difficulty, _ := v[1].(*int)
						return &CreateWordCmd{SetID: v[0].(int64), Difficulty: difficulty}
					})},
				{Weight: 3, Gen: gopter.CombineGens(GenMode(), gen.Int64Range(0, 3), gen.IntRange(-1, 5)).
					Map(func(v []interface{}) commands.Command {
						return &ScheduleCmd{Mode: v[0].(models.Mode), SetID: v[1].(int64), Limit: v[2].(int)}
					})},
				{Weight: 1, Gen: gen.IntRange(1, 24*8).
					Map(func(h int) commands.Command {
						return &AdvanceClockCmd{Hours: h}
					})},
			}

			if len(cmdState.IDs) > 0 {
				ids := make([]interface{}, len(cmdState.IDs))
				for i, id := range cmdState.IDs {
					ids[i] = id
				}
				weighted = append(weighted,
					gen.WeightedGen{Weight: 6, Gen: gen.OneConstOf(ids...).
						FlatMap(func(v interface{}) gopter.Gen {
							return GenAnswer(v.(int64)).Map(func(a progress.Answer) commands.Command {
								return &AnswerCmd{Answer: a}
							})
						}, reflectCommandType)},
					gen.WeightedGen{Weight: 1, Gen: gen.OneConstOf(ids...).
						Map(func(v int64) commands.Command {
							return &DeleteWordCmd{WordID: v}
						})},
				)
			}
			return gen.Weighted(weighted)
		},
	}
}
