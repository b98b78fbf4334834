package session

import (
	"net/url"
	"strings"

	xe "github.com/GeRDI-Project/Store-Service-Library-Store/pkg/errors"
)

// status of a work item.
type Status string

const (
	Pending     Status = "PENDING"
	InProgress  Status = "IN_PROGRESS"
	UnknownSize Status = "UNKNOWN_SIZE"
	Finished    Status = "FINISHED"
	Error       Status = "ERROR"
)

// Next returns the status after a transition request to `to`.
//
// UnknownSize is kept until the item is Finished or Error.
func (s Status) Next(to Status) Status {
	if s == UnknownSize && to != Error && to != Finished {
		return s
	}
	return to
}

// size marker for items whose size is not known.
const SizeUnknown int64 = -1

// one file to be copied.
type WorkItem struct {
	// URI of the file.
	Source string

	// display name.
	Name string

	// byte size. SizeUnknown when it is not known.
	Size int64

	// bytes copied so far.
	Transferred int64

	Status Status
}

// NewWorkItem makes a Pending WorkItem of the source URI.
//
// Its Name is the path (and query, if any) of the source.
func NewWorkItem(source string) (WorkItem, error) {
	u, err := url.Parse(source)
	if err != nil {
		return WorkItem{}, xe.Wrap(err)
	}
	if u.Scheme == "" || u.Host == "" {
		return WorkItem{}, xe.New("not an absolute URL: " + source)
	}

	name := u.EscapedPath()
	if u.RawQuery != "" {
		name += "?" + u.RawQuery
	}
	return WorkItem{Source: source, Name: name, Size: SizeUnknown, Status: Pending}, nil
}

// BaseName is the last path element of the Name, without query.
func (w WorkItem) BaseName() string {
	name, _, _ := strings.Cut(w.Name, "?")
	name = name[strings.LastIndex(name, "/")+1:]
	if unescaped, err := url.PathUnescape(name); err == nil {
		name = unescaped
	}
	return name
}

// SetStatus transits the status. See Status.Next .
func (w *WorkItem) SetStatus(s Status) {
	w.Status = w.Status.Next(s)
}

// Percent of progress.
//
// 100 if Finished, 0 if Error or UnknownSize, otherwise floor(Transferred * 100 / Size).
func (w WorkItem) Percent() int {
	switch w.Status {
	case Finished:
		return 100
	case Error, UnknownSize:
		return 0
	}
	if w.Size <= 0 {
		return 0
	}
	return int(min(w.Transferred, w.Size) * 100 / w.Size)
}

func (w WorkItem) Report() ProgressReport {
	return ProgressReport{
		FileName:          w.Name,
		ProgressInPercent: w.Percent(),
		State:             w.Status,
	}
}

// progress of an item, as workers tell.
type ProgressReport struct {
	FileName          string `json:"fileName"`
	ProgressInPercent int    `json:"progressInPercent"`
	State             Status `json:"state"`
}

// Reports of items.
func Reports(items []WorkItem) []ProgressReport {
	ret := make([]ProgressReport, 0, len(items))
	for _, i := range items {
		ret = append(ret, i.Report())
	}
	return ret
}
