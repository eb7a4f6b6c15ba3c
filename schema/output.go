package schema

// CommandEchoPrefix marks lines that echo operator input.
const CommandEchoPrefix = "> "

// KeepAliveNotice is the display line for a keep-alive record.
const KeepAliveNotice = "· keep-alive"

// StreamEndedNotice is appended once when the server closes the stream.
const StreamEndedNotice = "[stream ended]"

// SnapshotStartMarker frames the start of a tail snapshot; %d is the line count.
const SnapshotStartMarker = "--- last %d lines ---"

// SnapshotEndMarker frames the end of a tail snapshot.
const SnapshotEndMarker = "--- end of snapshot ---"

// ConnectFailedNotice is appended when a connection attempt is refused; %s is the reason.
const ConnectFailedNotice = "[connect failed] %s"

// StreamErrorNotice is appended when an open stream fails mid-read; %s is the reason.
const StreamErrorNotice = "[stream error] %s"

// PowerNotice records the outcome of a power action; %s is the server's message.
const PowerNotice = "[power] %s"
