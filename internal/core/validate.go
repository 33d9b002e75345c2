package core

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/valter-silva-au/taskdeck/pkg/models"
)

// MaxTitleLength is the longest accepted title, in characters.
const MaxTitleLength = 200

// ValidateTitle checks the write-time title rules.
func ValidateTitle(title string) error {
	var verr ValidationError
	checkTitle(&verr, title)
	return verr.orNil()
}

func checkTitle(verr *ValidationError, title string) {
	if strings.TrimSpace(title) == "" {
		verr.add("title", "title is required")
		return
	}
	if utf8.RuneCountInString(title) > MaxTitleLength {
		verr.add("title", "title must be at most 200 characters")
	}
}

// checkDueDate rejects dates before the start of the current day. A due
// date earlier today is still accepted so a plain calendar date entered for
// today is valid.
func checkDueDate(verr *ValidationError, due *time.Time, now time.Time) {
	if due == nil {
		return
	}
	if due.Before(startOfDay(now)) {
		verr.add("dueDate", "due date cannot be in the past")
	}
}

// ValidateDraft checks a create request before any persistence happens.
func ValidateDraft(d models.TaskDraft, now time.Time) error {
	var verr ValidationError
	checkTitle(&verr, d.Title)
	checkDueDate(&verr, d.DueDate, now)
	if d.Priority != "" && !d.Priority.Valid() {
		verr.add("priority", "unknown priority "+string(d.Priority))
	}
	return verr.orNil()
}

// ValidatePatch checks the fields an update would change.
func ValidatePatch(p models.TaskPatch, now time.Time) error {
	var verr ValidationError
	if p.Title != nil {
		checkTitle(&verr, *p.Title)
	}
	if !p.ClearDueDate {
		checkDueDate(&verr, p.DueDate, now)
	}
	if p.Status != nil && !p.Status.Valid() {
		verr.add("status", "unknown status "+string(*p.Status))
	}
	if p.Priority != nil && !p.Priority.Valid() {
		verr.add("priority", "unknown priority "+string(*p.Priority))
	}
	return verr.orNil()
}

// NormalizeTags lowercases and trims tags, drops empties and removes
// duplicates while keeping first-seen order. The result is never nil.
func NormalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]bool, len(tags))
	for _, tag := range tags {
		tag = strings.ToLower(strings.TrimSpace(tag))
		if tag == "" || seen[tag] {
			continue
		}
		seen[tag] = true
		out = append(out, tag)
	}
	return out
}

// checkRestored verifies a collection taken from a backup before it
// replaces the stored one. Ids must be present and unique, titles follow
// the write rules, status and priority must be known and updatedAt may not
// precede createdAt. Tags are normalized in place.
func checkRestored(tasks []models.Task) error {
	var verr ValidationError
	seen := make(map[string]bool, len(tasks))
	for i := range tasks {
		t := &tasks[i]
		field := fmt.Sprintf("tasks[%d]", i)

		switch {
		case t.ID == "":
			verr.add(field+".id", field+": id is required")
		case seen[t.ID]:
			verr.add(field+".id", field+": duplicate id "+t.ID)
		}
		seen[t.ID] = true

		var title ValidationError
		checkTitle(&title, t.Title)
		if msg, ok := title.Fields["title"]; ok {
			verr.add(field+".title", field+": "+msg)
		}
		if !t.Status.Valid() {
			verr.add(field+".status", field+": unknown status "+string(t.Status))
		}
		if !t.Priority.Valid() {
			verr.add(field+".priority", field+": unknown priority "+string(t.Priority))
		}
		if t.UpdatedAt.Before(t.CreatedAt) {
			verr.add(field+".updatedAt", field+": updatedAt is before createdAt")
		}
		t.Tags = NormalizeTags(t.Tags)
	}
	return verr.orNil()
}
