// Package syslogparse registers the "syslog" stage: decodes an RFC3164-ish
// syslog packet out of a raw field into facility/severity/host/program/
// pid/message/timestamp, grounded on
// original_source/test/test_filters.py::SyslogTests.
package syslogparse

import (
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/haginara/logcabin/pkg/event"
	"github.com/haginara/logcabin/pkg/registry"
	"github.com/haginara/logcabin/pkg/stage"
)

func init() {
	registry.Register("syslog", New)
}

var facilities = [...]string{
	"kern", "user", "mail", "daemon", "auth", "syslog", "lpr", "news",
	"uucp", "cron", "authpriv", "ftp", "ntp", "security", "console",
	"solaris-cron",
	"local0", "local1", "local2", "local3", "local4", "local5", "local6", "local7",
}

var severities = [...]string{
	"Emergency", "Alert", "Critical", "Error", "Warning", "Notice",
	"Informational", "Debug",
}

// priorityRe pulls the PRI part ("<174>") off the front of the packet;
// anything else (including an empty "<>") is malformed.
var priorityRe = regexp.MustCompile(`^<(\d+)>(.*)$`)

// bsdHeaderRe matches the two RFC3164 timestamp+host+tag layouts:
// "Nov 30 19:56:13 host01 prog[1234]: log message" and the PID-less
// "Mar  4 11:57:46 micro01 testlog.py: test" form.
var bsdHeaderRe = regexp.MustCompile(
	`^([A-Z][a-z]{2}\s+\d{1,2}\s\d{2}:\d{2}:\d{2})\s(\S+)\s([^:\[]+)(?:\[(\d+)\])?:\s?(.*)$`)

// rfc5424HeaderRe matches the RSYSLOG_ForwardFormat ISO8601 form:
// "2012-12-07T13:44:27.710956+01:00 test01 program: test".
var rfc5424HeaderRe = regexp.MustCompile(
	`^(\S+)\s(\S+)\s([^:\[]+)(?:\[(\d+)\])?:\s?(.*)$`)

type syslogFilter struct {
	field string
}

// New builds the "syslog" filter. Optional option: "field" (default
// "data", the raw packet text to parse).
func New(name string, opts registry.Options, logger zerolog.Logger) (stage.Stage, error) {
	f := &syslogFilter{field: opts.String("field", "data")}
	base := stage.New(name, f, opts.Int("queue_size", 64), logger)
	if p, err := stage.ParseErrorPolicy(opts.String("on_error", "")); err == nil {
		base.SetErrorPolicy(p, opts.String("error_tag", ""))
	}
	return base, nil
}

func (f *syslogFilter) Process(ev *event.Event) (bool, error) {
	data, _ := ev.Get(f.field).(string)

	m := priorityRe.FindStringSubmatch(data)
	if m == nil {
		ev.Set("message", "invalid syslog")
		return true, fmt.Errorf("syslog: no priority field in %q", data)
	}
	pri, err := strconv.Atoi(m[1])
	if err != nil {
		ev.Set("message", "invalid syslog")
		return true, fmt.Errorf("syslog: bad priority %q", m[1])
	}
	facility := pri / 8
	severity := pri % 8
	if facility >= len(facilities) {
		ev.Set("message", "invalid syslog")
		return true, fmt.Errorf("syslog: facility out of range: %d", facility)
	}

	rest := m[2]
	ts, host, program, pid, message, ok := parseHeader(rest)
	if !ok {
		ev.Set("message", "invalid syslog")
		return true, fmt.Errorf("syslog: unrecognized header: %q", rest)
	}

	ev.Set("timestamp", ts)
	ev.Set("facility", facilities[facility])
	ev.Set("severity", severities[severity])
	ev.Set("host", host)
	ev.Set("program", program)
	if pid != "" {
		ev.Set("pid", pid)
	} else {
		ev.Set("pid", nil)
	}
	ev.Set("message", message)
	return true, nil
}

// parseHeader tries the RFC3164 BSD timestamp form first, then falls back
// to the RFC5424-ish ISO8601 form used by RSYSLOG_ForwardFormat.
func parseHeader(rest string) (ts time.Time, host, program, pid, message string, ok bool) {
	if m := bsdHeaderRe.FindStringSubmatch(rest); m != nil {
		t, err := time.ParseInLocation("Jan _2 15:04:05", m[1], time.UTC)
		if err != nil {
			return time.Time{}, "", "", "", "", false
		}
		t = time.Date(time.Now().Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), 0, time.UTC)
		return t, m[2], m[3], m[4], m[5], true
	}
	if m := rfc5424HeaderRe.FindStringSubmatch(rest); m != nil {
		t, err := time.Parse(time.RFC3339Nano, m[1])
		if err != nil {
			return time.Time{}, "", "", "", "", false
		}
		return t, m[2], m[3], m[4], m[5], true
	}
	return time.Time{}, "", "", "", "", false
}
