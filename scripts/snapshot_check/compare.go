package main

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/noah-isme/canto-lessons/internal/models"
)

type report struct {
	LocalGeneratedAt  int64
	RemoteGeneratedAt int64
	LocalStudents     int
	RemoteStudents    int
	LocalLessons      int
	RemoteLessons     int
	// StudentsOnlyLocal lists students the published file does not have yet.
	StudentsOnlyLocal []string
	// MissingAssigned maps a published student to assigned lesson ids that the
	// published file does not contain.
	MissingAssigned map[string][]string
	ChangedLessons  []string
}

func (r report) consistent() bool {
	return len(r.StudentsOnlyLocal) == 0 && len(r.MissingAssigned) == 0 && len(r.ChangedLessons) == 0 &&
		r.LocalStudents == r.RemoteStudents && r.LocalLessons == r.RemoteLessons
}

func compareSnapshots(local, remote models.ClassroomSnapshot) report {
	r := report{
		LocalGeneratedAt:  local.GeneratedAt,
		RemoteGeneratedAt: remote.GeneratedAt,
		LocalStudents:     len(local.Students),
		RemoteStudents:    len(remote.Students),
		LocalLessons:      len(local.Lessons),
		RemoteLessons:     len(remote.Lessons),
		MissingAssigned:   map[string][]string{},
	}

	remoteStudents := make(map[string]struct{}, len(remote.Students))
	for _, s := range remote.Students {
		remoteStudents[s.ID] = struct{}{}
	}
	for _, s := range local.Students {
		if _, ok := remoteStudents[s.ID]; !ok {
			r.StudentsOnlyLocal = append(r.StudentsOnlyLocal, s.ID)
		}
	}

	remoteLessons := make(map[string]models.Lesson, len(remote.Lessons))
	for _, l := range remote.Lessons {
		remoteLessons[l.ID] = l
	}
	for _, s := range remote.Students {
		for _, id := range s.AssignedLessonIDs {
			if _, ok := remoteLessons[id]; !ok {
				r.MissingAssigned[s.ID] = append(r.MissingAssigned[s.ID], id)
			}
		}
	}
	for _, l := range local.Lessons {
		if published, ok := remoteLessons[l.ID]; ok && !sameLesson(l, published) {
			r.ChangedLessons = append(r.ChangedLessons, l.ID)
		}
	}
	sort.Strings(r.StudentsOnlyLocal)
	sort.Strings(r.ChangedLessons)
	return r
}

func sameLesson(a, b models.Lesson) bool {
	if a.Title != b.Title || a.MediaURL != b.MediaURL || len(a.Sentences) != len(b.Sentences) {
		return false
	}
	for i := range a.Sentences {
		sa, sb := a.Sentences[i], b.Sentences[i]
		if sa.ID != sb.ID || sa.Translation != sb.Translation || len(sa.Words) != len(sb.Words) {
			return false
		}
		for j := range sa.Words {
			if sa.Words[j].Char != sb.Words[j].Char || sa.Words[j].SelectedJyutping != sb.Words[j].SelectedJyutping {
				return false
			}
		}
	}
	return true
}

func (r report) print(w io.Writer) {
	fmt.Fprintf(w, "local generatedAt:  %s\n", formatMillis(r.LocalGeneratedAt))
	fmt.Fprintf(w, "remote generatedAt: %s\n", formatMillis(r.RemoteGeneratedAt))
	if r.RemoteGeneratedAt < r.LocalGeneratedAt {
		drift := time.Duration(r.LocalGeneratedAt-r.RemoteGeneratedAt) * time.Millisecond
		fmt.Fprintf(w, "published snapshot is %s older than the local export\n", drift.Round(time.Second))
	}
	fmt.Fprintf(w, "students: local=%d remote=%d\n", r.LocalStudents, r.RemoteStudents)
	fmt.Fprintf(w, "lessons:  local=%d remote=%d\n", r.LocalLessons, r.RemoteLessons)
	for _, id := range r.StudentsOnlyLocal {
		fmt.Fprintf(w, "student %s is not published\n", id)
	}
	ids := make([]string, 0, len(r.MissingAssigned))
	for id := range r.MissingAssigned {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		fmt.Fprintf(w, "student %s is assigned lessons missing from the published file: %v\n", id, r.MissingAssigned[id])
	}
	for _, id := range r.ChangedLessons {
		fmt.Fprintf(w, "lesson %s differs from the published copy\n", id)
	}
	if r.consistent() {
		fmt.Fprintln(w, "OK: published snapshot matches")
	} else {
		fmt.Fprintln(w, "MISMATCH: republish the classroom snapshot")
	}
}

func formatMillis(ms int64) string {
	if ms <= 0 {
		return "unknown"
	}
	return time.UnixMilli(ms).UTC().Format(time.RFC3339)
}
