package logger

import (
	"fmt"
	"io"
	"log"
	"strings"
	"sync"
)

var (
	transcriptMu   sync.Mutex
	transcriptLog  *log.Logger
	transcriptDump bool
)

// SetTranscriptWriter enables the council transcript; nil disables it.
func SetTranscriptWriter(w io.Writer) {
	transcriptMu.Lock()
	defer transcriptMu.Unlock()
	if w == nil {
		transcriptLog = nil
		return
	}
	transcriptLog = log.New(w, "", log.LstdFlags)
}

// EnableTranscriptDump also writes raw request payloads into the transcript.
func EnableTranscriptDump(enabled bool) {
	transcriptMu.Lock()
	transcriptDump = enabled
	transcriptMu.Unlock()
}

type section struct {
	title string
	body  string
}

func writeTranscript(kind, stage, model string, sections []section) {
	transcriptMu.Lock()
	defer transcriptMu.Unlock()
	if transcriptLog == nil {
		return
	}
	var b strings.Builder
	b.WriteString("[COUNCIL]")
	for _, tag := range []string{kind, stage, model} {
		if tag == "" {
			continue
		}
		b.WriteString("[")
		b.WriteString(tag)
		b.WriteString("]")
	}
	b.WriteString("\n")
	for _, sec := range sections {
		title := strings.TrimSpace(sec.title)
		if title == "" {
			title = "CONTENT"
		}
		b.WriteString("--- ")
		b.WriteString(title)
		b.WriteString(" ---\n")
		b.WriteString(sec.body)
		if !strings.HasSuffix(sec.body, "\n") {
			b.WriteString("\n")
		}
	}
	b.WriteString("=====\n")
	transcriptLog.Print(b.String())
}

// LogModelRequest records the messages sent to one model during a stage.
// roles and contents are parallel slices.
func LogModelRequest(stage, model string, roles, contents []string, payload string) {
	sections := make([]section, 0, len(contents)+1)
	for i, content := range contents {
		role := "MESSAGE"
		if i < len(roles) && strings.TrimSpace(roles[i]) != "" {
			role = strings.ToUpper(roles[i])
		}
		sections = append(sections, section{title: fmt.Sprintf("%s#%d", role, i+1), body: content})
	}
	transcriptMu.Lock()
	dump := transcriptDump
	transcriptMu.Unlock()
	if dump && strings.TrimSpace(payload) != "" {
		sections = append(sections, section{title: "PAYLOAD", body: payload})
	}
	writeTranscript("request", stage, model, sections)
}

// LogModelResponse records the raw reply (or the failure) of one model.
func LogModelResponse(stage, model, raw string, err error) {
	sections := []section{{title: "RAW", body: raw}}
	if err != nil {
		sections = append(sections, section{title: "ERROR", body: err.Error()})
	}
	writeTranscript("response", stage, model, sections)
}
