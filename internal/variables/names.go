package variables

import "github.com/klyr/seclang/internal/keyword"

type shape int

const (
	scalar shape = iota
	collection
)

var collections = []string{
	"ARGS", "ARGS_GET", "ARGS_GET_NAMES", "ARGS_NAMES", "ARGS_POST", "ARGS_POST_NAMES",
	"ENV", "FILES", "FILES_NAMES", "FILES_SIZES", "FILES_TMPNAMES", "FILES_TMP_CONTENT",
	"GEO", "GLOBAL", "IP", "MATCHED_VARS", "MATCHED_VARS_NAMES", "MULTIPART_PART_HEADERS",
	"REQUEST_COOKIES", "REQUEST_COOKIES_NAMES", "REQUEST_HEADERS", "REQUEST_HEADERS_NAMES",
	"RESOURCE", "RESPONSE_HEADERS", "RESPONSE_HEADERS_NAMES", "RULE", "SESSION", "TX",
	"USER", "XML",
}

var scalars = []string{
	"ARGS_COMBINED_SIZE", "AUTH_TYPE", "DURATION", "FILES_COMBINED_SIZE", "FULL_REQUEST",
	"FULL_REQUEST_LENGTH", "HIGHEST_SEVERITY", "INBOUND_DATA_ERROR", "MATCHED_VAR",
	"MATCHED_VAR_NAME", "MODSEC_BUILD", "MSC_PCRE_LIMITS_EXCEEDED", "MULTIPART_BOUNDARY_QUOTED",
	"MULTIPART_BOUNDARY_WHITESPACE", "MULTIPART_CRLF_LF_LINES", "MULTIPART_DATA_AFTER",
	"MULTIPART_DATA_BEFORE", "MULTIPART_FILE_LIMIT_EXCEEDED", "MULTIPART_FILENAME",
	"MULTIPART_HEADER_FOLDING", "MULTIPART_INVALID_HEADER_FOLDING", "MULTIPART_INVALID_PART",
	"MULTIPART_INVALID_QUOTING", "MULTIPART_LF_LINE", "MULTIPART_MISSING_SEMICOLON",
	"MULTIPART_NAME", "MULTIPART_STRICT_ERROR", "MULTIPART_UNMATCHED_BOUNDARY",
	"OUTBOUND_DATA_ERROR", "PATH_INFO", "QUERY_STRING", "REMOTE_ADDR", "REMOTE_HOST",
	"REMOTE_PORT", "REMOTE_USER", "REQBODY_ERROR", "REQBODY_ERROR_MSG", "REQBODY_PROCESSOR",
	"REQBODY_PROCESSOR_ERROR", "REQBODY_PROCESSOR_ERROR_MSG", "REQUEST_BASENAME", "REQUEST_BODY",
	"REQUEST_BODY_LENGTH", "REQUEST_FILENAME", "REQUEST_LINE", "REQUEST_METHOD",
	"REQUEST_PROTOCOL", "REQUEST_URI", "REQUEST_URI_RAW", "RESPONSE_BODY",
	"RESPONSE_CONTENT_LENGTH", "RESPONSE_CONTENT_TYPE", "RESPONSE_PROTOCOL", "RESPONSE_STATUS",
	"SERVER_ADDR", "SERVER_NAME", "SERVER_PORT", "SESSIONID", "STATUS_LINE", "TIME", "TIME_DAY",
	"TIME_EPOCH", "TIME_HOUR", "TIME_MIN", "TIME_MON", "TIME_SEC", "TIME_WDAY", "TIME_YEAR",
	"UNIQUE_ID", "URLENCODED_ERROR", "USERID", "WEBAPPID", "WEBSERVER_ERROR_LOG",
}

var names = func() *keyword.Table[shape] {
	entries := make(map[string]shape, len(collections)+len(scalars))
	for _, name := range collections {
		entries[name] = collection
	}
	for _, name := range scalars {
		entries[name] = scalar
	}
	return keyword.New(entries)
}()

// Known reports whether name is a variable and returns its canonical spelling.
func Known(name string) (string, bool) {
	return names.Canonical(name)
}

// IsCollection reports whether name accepts a key selector.
func IsCollection(name string) bool {
	s, ok := names.Lookup(name)
	return ok && s == collection
}
