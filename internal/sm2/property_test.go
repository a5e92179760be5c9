package sm2

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func genState() gopter.Gen {
	return gopter.CombineGens(
		gen.Float64Range(MinEaseFactor, 4.0),
		gen.IntRange(0, 400),
		gen.IntRange(0, 30),
	).Map(func(vals []interface{}) State {
		return State{
			EaseFactor:   vals[0].(float64),
			IntervalDays: vals[1].(int),
			Repetitions:  vals[2].(int),
		}
	})
}

func TestReviewProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 500
	properties := gopter.NewProperties(parameters)

	properties.Property("ease never drops below the floor", prop.ForAll(
		func(s State, grade int) bool {
			return Review(s, grade).EaseFactor >= MinEaseFactor
		},
		genState(), gen.IntRange(0, 5),
	))

	properties.Property("interval and repetitions stay non-negative", prop.ForAll(
		func(s State, grade int) bool {
			next := Review(s, grade)
			return next.IntervalDays >= 0 && next.Repetitions >= 0
		},
		genState(), gen.IntRange(-3, 8),
	))

	properties.Property("blackout resets interval and repetitions", prop.ForAll(
		func(s State) bool {
			next := Review(s, 0)
			return next.IntervalDays == 0 && next.Repetitions == 0
		},
		genState(),
	))

	properties.Property("successive passes never shrink the interval", prop.ForAll(
		func(ease float64, grade int) bool {
			s := State{EaseFactor: ease}
			prev := 0
			for i := 0; i < 6; i++ {
				s = Review(s, grade)
				if s.IntervalDays < prev {
					return false
				}
				prev = s.IntervalDays
			}
			return true
		},
		gen.Float64Range(MinEaseFactor, 3.5), gen.IntRange(PassGrade, MaxGrade),
	))

	properties.Property("speed adjustment keeps the grade in range and on the same side of the pass mark", prop.ForAll(
		func(grade, rt int) bool {
			adjusted := AdjustGradeBySpeed(grade, &rt)
			if adjusted < 0 || adjusted > MaxGrade {
				return false
			}
			return (grade >= PassGrade) == (adjusted >= PassGrade)
		},
		gen.IntRange(0, 5), gen.IntRange(0, 30000),
	))

	properties.TestingRun(t)
}
