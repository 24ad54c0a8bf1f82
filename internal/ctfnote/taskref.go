package ctfnote

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// TaskRef identifies a task in the note service. It is stored in the topic of
// the challenge channel so later commands in that channel can find it.
type TaskRef struct {
	CTFID  int64
	TaskID int64
}

var (
	taskRefPattern = regexp.MustCompile(`ctfnote:(\d+):(\d+)`)
	ctftimePattern = regexp.MustCompile(`ctftime\.org/event/(\d+)`)
)

// String returns the topic form, ctfnote:<ctf>:<task>.
func (r TaskRef) String() string {
	return fmt.Sprintf("ctfnote:%d:%d", r.CTFID, r.TaskID)
}

// ParseTaskRef finds a task reference anywhere in a channel topic.
func ParseTaskRef(topic string) (TaskRef, bool) {
	m := taskRefPattern.FindStringSubmatch(topic)
	if m == nil {
		return TaskRef{}, false
	}
	ctfID, err1 := strconv.ParseInt(m[1], 10, 64)
	taskID, err2 := strconv.ParseInt(m[2], 10, 64)
	if err1 != nil || err2 != nil {
		return TaskRef{}, false
	}
	return TaskRef{CTFID: ctfID, TaskID: taskID}, true
}

// WithTaskRef returns topic with any existing reference replaced by ref.
func WithTaskRef(topic string, ref TaskRef) string {
	if taskRefPattern.MatchString(topic) {
		return taskRefPattern.ReplaceAllString(topic, ref.String())
	}
	if topic = strings.TrimSpace(topic); topic == "" {
		return ref.String()
	}
	return topic + " " + ref.String()
}

// ParseCTFTimeID accepts a bare event id or a ctftime.org event link.
func ParseCTFTimeID(link string) (int64, error) {
	link = strings.TrimSpace(link)
	if id, err := strconv.ParseInt(link, 10, 64); err == nil && id > 0 {
		return id, nil
	}
	if m := ctftimePattern.FindStringSubmatch(link); m != nil {
		return strconv.ParseInt(m[1], 10, 64)
	}
	return 0, fmt.Errorf("not a ctftime event link or id: %q", link)
}
