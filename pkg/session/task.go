package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

var ErrInvalidTask = errors.New("invalid task")

// a copy job, as it is submitted.
type Task struct {
	UserId       string
	BookmarkId   string
	BookmarkName string

	// ordered work items
	Items []WorkItem
}

// Sources of items, in order.
func (t Task) Sources() []string {
	ret := make([]string, 0, len(t.Items))
	for _, i := range t.Items {
		ret = append(ret, i.Source)
	}
	return ret
}

func (t Task) clone() Task {
	items := make([]WorkItem, len(t.Items))
	copy(items, t.Items)
	t.Items = items
	return t
}

type taskPayload struct {
	UserId       *string  `json:"userId"`
	BookmarkId   *string  `json:"bookmarkId"`
	BookmarkName *string  `json:"bookmarkName"`
	Docs         []string `json:"docs"`
}

// ParseTask reads a task submission.
//
// userId, bookmarkId and bookmarkName are required,
// and docs should be a non-empty list of absolute URLs.
//
// Errors are ErrInvalidTask, wrapped with explanation.
func ParseTask(r io.Reader) (Task, error) {
	payload := taskPayload{}
	if err := json.NewDecoder(r).Decode(&payload); err != nil {
		return Task{}, fmt.Errorf("%w: malformed json: %w", ErrInvalidTask, err)
	}

	for name, field := range map[string]*string{
		"userId":       payload.UserId,
		"bookmarkId":   payload.BookmarkId,
		"bookmarkName": payload.BookmarkName,
	} {
		if field == nil {
			return Task{}, fmt.Errorf("%w: %s must not be null", ErrInvalidTask, name)
		}
	}
	if len(payload.Docs) == 0 {
		return Task{}, fmt.Errorf("%w: docs must not be empty", ErrInvalidTask)
	}

	items := make([]WorkItem, 0, len(payload.Docs))
	for _, d := range payload.Docs {
		item, err := NewWorkItem(d)
		if err != nil {
			return Task{}, fmt.Errorf("%w: at least one element in docs is not a valid URL: %s", ErrInvalidTask, d)
		}
		items = append(items, item)
	}

	return Task{
		UserId:       *payload.UserId,
		BookmarkId:   *payload.BookmarkId,
		BookmarkName: *payload.BookmarkName,
		Items:        items,
	}, nil
}
