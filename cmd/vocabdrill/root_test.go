package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runCLI executes the root command against dbPath and returns stdout
func runCLI(t *testing.T, driver, dbPath string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(append([]string{"--db", dbPath, "--driver", driver, "--log-level", "error"}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestCLIWorkflow(t *testing.T) {
	for _, driver := range []string{"json", "sqlite"} {
		t.Run(driver, func(t *testing.T) {
			dbPath := filepath.Join(t.TempDir(), "vocab."+driver)

			out, err := runCLI(t, driver, dbPath, "add", "--set", "1", "--term", "Haus", "--translation", "house", "--difficulty", "2")
			require.NoError(t, err)
			var word WordResponse
			require.NoError(t, json.Unmarshal([]byte(out), &word))
			require.True(t, word.Success, word.Error)
			require.NotNil(t, word.Word)
			id := strconv.FormatInt(word.Word.ID, 10)

			out, err = runCLI(t, driver, dbPath, "schedule", "flashcard", "--set", "1")
			require.NoError(t, err)
			var sched ScheduleResponse
			require.NoError(t, json.Unmarshal([]byte(out), &sched))
			require.NotNil(t, sched.Flashcard)
			assert.Equal(t, []int64{word.Word.ID}, sched.Flashcard.OrderedIDs)

			out, err = runCLI(t, driver, dbPath, "answer", id, "correct", "--mode", "test", "--grade", "4", "--response-ms", "2000")
			require.NoError(t, err)
			var answer AnswerResponse
			require.NoError(t, json.Unmarshal([]byte(out), &answer))
			require.NotNil(t, answer.Progress)
			assert.Equal(t, 1, answer.Progress.TimesSeen)
			assert.Equal(t, 2000.0, answer.Progress.AverageResponseTime)

			out, err = runCLI(t, driver, dbPath, "schedule", "review", "--set", "1", "--explain")
			require.NoError(t, err)
			require.NoError(t, json.Unmarshal([]byte(out), &sched))
			require.NotNil(t, sched.Review)
			assert.Equal(t, []int64{word.Word.ID}, sched.Review.OrderedIDs, "Seen words are reviewable")

			out, err = runCLI(t, driver, dbPath, "list", "--set", "1")
			require.NoError(t, err)
			var list ListWordsResponse
			require.NoError(t, json.Unmarshal([]byte(out), &list))
			require.Len(t, list.Words, 1)
			assert.Equal(t, 1, list.Words[0].TimesSeen)

			out, err = runCLI(t, driver, dbPath, "stats")
			require.NoError(t, err)
			var stats StatsResponse
			require.NoError(t, json.Unmarshal([]byte(out), &stats))
			require.NotNil(t, stats.Stats)
			assert.Equal(t, 1, stats.Stats.TotalWords)
			assert.Equal(t, 1, stats.Stats.ReviewedToday)
		})
	}
}

func TestCLIErrors(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "vocab.json")

	tests := []struct {
		name string
		args []string
	}{
		{name: "unknown mode", args: []string{"schedule", "lesson"}},
		{name: "unknown word", args: []string{"answer", "42", "correct"}},
		{name: "bad word id", args: []string{"answer", "forty-two", "correct"}},
		{name: "bad result", args: []string{"answer", "1", "perhaps"}},
		{name: "missing term", args: []string{"add", "--set", "1", "--translation", "x"}},
		{name: "bad difficulty", args: []string{"add", "--set", "1", "--term", "a", "--translation", "b", "--difficulty", "0"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := runCLI(t, "json", dbPath, tc.args...)
			assert.Error(t, err)
		})
	}
}

func TestCLIRejectsUnknownDriver(t *testing.T) {
	_, err := runCLI(t, "csv", filepath.Join(t.TempDir(), "vocab.csv"), "stats")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "storage.driver")
}

func TestCLIConfigFile(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "vocabdrill.yaml")
	dbPath := filepath.Join(dir, "from-config.json")
	writeFile(t, cfgPath, "storage:\n  driver: json\n  path: "+dbPath+"\nlog:\n  level: error\n")

	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--config", cfgPath, "add", "--set", "2", "--term", "Tisch", "--translation", "table"})
	require.NoError(t, cmd.Execute())

	// the word landed in the file named by the config
	out.Reset()
	listOut, err := runCLI(t, "json", dbPath, "list", "--set", "2")
	require.NoError(t, err)
	var list ListWordsResponse
	require.NoError(t, json.Unmarshal([]byte(listOut), &list))
	require.Len(t, list.Words, 1)
	assert.Equal(t, "Tisch", list.Words[0].Term)
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}
