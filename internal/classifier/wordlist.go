package classifier

import (
	"bufio"
	"fmt"
	"io/fs"
	"strings"
)

// WordList is a set of common words of the managed languages.
type WordList struct {
	words map[string]struct{}
}

func NewWordList(words ...string) *WordList {
	w := &WordList{words: make(map[string]struct{}, len(words))}
	for _, word := range words {
		w.add(word)
	}
	return w
}

// LoadWordLists reads newline separated word files from fsys.
func LoadWordLists(fsys fs.FS, paths ...string) (*WordList, error) {
	w := NewWordList()
	for _, path := range paths {
		f, err := fsys.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open word list %s: %w", path, err)
		}
		scanner := bufio.NewScanner(f)
		for scanner.Scan() {
			w.add(scanner.Text())
		}
		err = scanner.Err()
		_ = f.Close()
		if err != nil {
			return nil, fmt.Errorf("read word list %s: %w", path, err)
		}
	}
	return w, nil
}

func (w *WordList) add(word string) {
	word = strings.ToLower(strings.TrimSpace(word))
	if word == "" || strings.HasPrefix(word, "#") {
		return
	}
	w.words[word] = struct{}{}
}

func (w *WordList) Len() int {
	return len(w.words)
}

func (w *WordList) Contains(word string) bool {
	_, ok := w.words[strings.ToLower(word)]
	return ok
}

// Unknown returns the words of s absent from the list and the total word count.
func (w *WordList) Unknown(s string) (unknown []string, total int) {
	for _, word := range strings.Fields(strings.ToLower(s)) {
		total++
		if !w.Contains(word) {
			unknown = append(unknown, word)
		}
	}
	return unknown, total
}
