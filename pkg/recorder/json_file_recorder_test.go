package recorder

import (
	"bufio"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONFileRecorderAppendsLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "executions.jsonl")
	r := NewJSONFileRecorder(path)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, r.Record(map[string]int{"n": i}))
		}(i)
	}
	wg.Wait()

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	lines := 0
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var v map[string]int
		require.NoError(t, json.Unmarshal(sc.Bytes(), &v))
		lines++
	}
	assert.Equal(t, 20, lines)
}

func TestJSONFileRecorderMarshalError(t *testing.T) {
	r := NewJSONFileRecorder(filepath.Join(t.TempDir(), "x.jsonl"))
	assert.Error(t, r.Record(make(chan int)))
}
