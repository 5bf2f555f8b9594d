package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/klyr/seclang/internal/keyword"
	"github.com/klyr/seclang/internal/logging"
)

type EngineMode string

const (
	EngineOn            EngineMode = "On"
	EngineOff           EngineMode = "Off"
	EngineDetectionOnly EngineMode = "DetectionOnly"
)

type BodyLimitAction string

const (
	LimitReject         BodyLimitAction = "Reject"
	LimitProcessPartial BodyLimitAction = "ProcessPartial"
)

type AuditEngine string

const (
	AuditOn           AuditEngine = "On"
	AuditOff          AuditEngine = "Off"
	AuditRelevantOnly AuditEngine = "RelevantOnly"
)

// Properties holds the scalar engine settings declared by Sec* directives.
type Properties struct {
	RuleEngine              EngineMode      `json:"ruleEngine" yaml:"ruleEngine"`
	RequestBodyAccess       bool            `json:"requestBodyAccess" yaml:"requestBodyAccess"`
	ResponseBodyAccess      bool            `json:"responseBodyAccess" yaml:"responseBodyAccess"`
	ArgumentSeparator       string          `json:"argumentSeparator" yaml:"argumentSeparator"`
	ArgumentsLimit          int64           `json:"argumentsLimit,omitempty" yaml:"argumentsLimit,omitempty"`
	RequestBodyLimit        int64           `json:"requestBodyLimit" yaml:"requestBodyLimit"`
	RequestBodyNoFilesLimit int64           `json:"requestBodyNoFilesLimit" yaml:"requestBodyNoFilesLimit"`
	RequestBodyLimitAction  BodyLimitAction `json:"requestBodyLimitAction" yaml:"requestBodyLimitAction"`
	ResponseBodyLimit       int64           `json:"responseBodyLimit" yaml:"responseBodyLimit"`
	ResponseBodyLimitAction BodyLimitAction `json:"responseBodyLimitAction" yaml:"responseBodyLimitAction"`
	ResponseBodyMimeTypes   []string        `json:"responseBodyMimeTypes,omitempty" yaml:"responseBodyMimeTypes,omitempty"`
	Audit                   AuditProperties `json:"audit" yaml:"audit"`
	DebugLog                string          `json:"debugLog,omitempty" yaml:"debugLog,omitempty"`
	DebugLogLevel           int64           `json:"debugLogLevel,omitempty" yaml:"debugLogLevel,omitempty"`
	WebAppID                string          `json:"webAppId,omitempty" yaml:"webAppId,omitempty"`
	ComponentSignatures     []string        `json:"componentSignatures,omitempty" yaml:"componentSignatures,omitempty"`
	UploadDir               string          `json:"uploadDir,omitempty" yaml:"uploadDir,omitempty"`
	UploadFileLimit         int64           `json:"uploadFileLimit,omitempty" yaml:"uploadFileLimit,omitempty"`
	UploadFileMode          os.FileMode     `json:"uploadFileMode,omitempty" yaml:"uploadFileMode,omitempty"`
	UploadKeepFiles         bool            `json:"uploadKeepFiles,omitempty" yaml:"uploadKeepFiles,omitempty"`
	TmpSaveUploadedFiles    bool            `json:"tmpSaveUploadedFiles,omitempty" yaml:"tmpSaveUploadedFiles,omitempty"`
	XMLExternalEntity       bool            `json:"xmlExternalEntity,omitempty" yaml:"xmlExternalEntity,omitempty"`
	HTTPBlKey               string          `json:"httpBlKey,omitempty" yaml:"httpBlKey,omitempty"`
	RemoteRulesFailAction   string          `json:"remoteRulesFailAction,omitempty" yaml:"remoteRulesFailAction,omitempty"`
	CookieFormat            int64           `json:"cookieFormat" yaml:"cookieFormat"`
	UnicodeMapFile          string          `json:"unicodeMapFile,omitempty" yaml:"unicodeMapFile,omitempty"`
	UnicodeCodePage         int64           `json:"unicodeCodePage,omitempty" yaml:"unicodeCodePage,omitempty"`
	PcreMatchLimit          int64           `json:"pcreMatchLimit,omitempty" yaml:"pcreMatchLimit,omitempty"`
	PcreMatchLimitRecursion int64           `json:"pcreMatchLimitRecursion,omitempty" yaml:"pcreMatchLimitRecursion,omitempty"`
}

type AuditProperties struct {
	Engine         AuditEngine `json:"engine" yaml:"engine"`
	Log            string      `json:"log,omitempty" yaml:"log,omitempty"`
	Log2           string      `json:"log2,omitempty" yaml:"log2,omitempty"`
	Parts          string      `json:"parts" yaml:"parts"`
	Type           string      `json:"type" yaml:"type"`
	Format         string      `json:"format" yaml:"format"`
	StorageDir     string      `json:"storageDir,omitempty" yaml:"storageDir,omitempty"`
	DirMode        os.FileMode `json:"dirMode,omitempty" yaml:"dirMode,omitempty"`
	FileMode       os.FileMode `json:"fileMode,omitempty" yaml:"fileMode,omitempty"`
	RelevantStatus string      `json:"relevantStatus,omitempty" yaml:"relevantStatus,omitempty"`
}

func NewProperties() *Properties {
	return &Properties{
		RuleEngine:              EngineOff,
		ArgumentSeparator:       "&",
		RequestBodyLimit:        13107200,
		RequestBodyNoFilesLimit: 131072,
		RequestBodyLimitAction:  LimitReject,
		ResponseBodyLimit:       524288,
		ResponseBodyLimitAction: LimitReject,
		ResponseBodyMimeTypes:   []string{"text/plain", "text/html"},
		Audit: AuditProperties{
			Engine: AuditOff,
			Parts:  "ABCFHZ",
			Type:   "Serial",
			Format: "Native",
		},
	}
}

type setter struct {
	args int // -1 accepts one or more
	set  func(p *Properties, args []string, dir string) error
}

var setters = keyword.New(map[string]setter{
	"SecRuleEngine": {1, func(p *Properties, a []string, _ string) error {
		return oneOf(&p.RuleEngine, "SecRuleEngine", a[0], EngineOn, EngineOff, EngineDetectionOnly)
	}},
	"SecRequestBodyAccess":  {1, func(p *Properties, a []string, _ string) error { return onOff(&p.RequestBodyAccess, "SecRequestBodyAccess", a[0]) }},
	"SecResponseBodyAccess": {1, func(p *Properties, a []string, _ string) error { return onOff(&p.ResponseBodyAccess, "SecResponseBodyAccess", a[0]) }},
	"SecArgumentSeparator": {1, func(p *Properties, a []string, _ string) error {
		if len(a[0]) != 1 {
			return logging.Semanticf("Argument separator should be set to a single character.")
		}
		p.ArgumentSeparator = a[0]
		return nil
	}},
	"SecArgumentsLimit":          {1, intSetter(func(p *Properties) *int64 { return &p.ArgumentsLimit })},
	"SecRequestBodyLimit":        {1, intSetter(func(p *Properties) *int64 { return &p.RequestBodyLimit })},
	"SecRequestBodyNoFilesLimit": {1, intSetter(func(p *Properties) *int64 { return &p.RequestBodyNoFilesLimit })},
	"SecResponseBodyLimit":       {1, intSetter(func(p *Properties) *int64 { return &p.ResponseBodyLimit })},
	"SecRequestBodyLimitAction": {1, func(p *Properties, a []string, _ string) error {
		return oneOf(&p.RequestBodyLimitAction, "SecRequestBodyLimitAction", a[0], LimitReject, LimitProcessPartial)
	}},
	"SecResponseBodyLimitAction": {1, func(p *Properties, a []string, _ string) error {
		return oneOf(&p.ResponseBodyLimitAction, "SecResponseBodyLimitAction", a[0], LimitReject, LimitProcessPartial)
	}},
	"SecResponseBodyMimeType": {-1, func(p *Properties, a []string, _ string) error {
		for _, arg := range a {
			p.ResponseBodyMimeTypes = append(p.ResponseBodyMimeTypes, strings.Fields(arg)...)
		}
		return nil
	}},
	"SecResponseBodyMimeTypesClear": {0, func(p *Properties, _ []string, _ string) error {
		p.ResponseBodyMimeTypes = nil
		return nil
	}},
	"SecAuditEngine": {1, func(p *Properties, a []string, _ string) error {
		return oneOf(&p.Audit.Engine, "SecAuditEngine", a[0], AuditOn, AuditOff, AuditRelevantOnly)
	}},
	"SecAuditLog":  {1, func(p *Properties, a []string, _ string) error { p.Audit.Log = a[0]; return nil }},
	"SecAuditLog2": {1, func(p *Properties, a []string, _ string) error { p.Audit.Log2 = a[0]; return nil }},
	"SecAuditLogParts": {1, func(p *Properties, a []string, _ string) error {
		if strings.Trim(a[0], "ABCDEFGHIJKZ") != "" {
			return logging.Semanticf("SecAuditLogParts: invalid parts %s", a[0])
		}
		p.Audit.Parts = a[0]
		return nil
	}},
	"SecAuditLogType": {1, func(p *Properties, a []string, _ string) error {
		return oneOf(&p.Audit.Type, "SecAuditLogType", a[0], "Serial", "Concurrent", "HTTPS")
	}},
	"SecAuditLogFormat": {1, func(p *Properties, a []string, _ string) error {
		return oneOf(&p.Audit.Format, "SecAuditLogFormat", a[0], "JSON", "Native")
	}},
	"SecAuditLogStorageDir":     {1, func(p *Properties, a []string, _ string) error { p.Audit.StorageDir = a[0]; return nil }},
	"SecAuditLogDirMode":        {1, modeSetter(func(p *Properties) *os.FileMode { return &p.Audit.DirMode })},
	"SecAuditLogFileMode":       {1, modeSetter(func(p *Properties) *os.FileMode { return &p.Audit.FileMode })},
	"SecAuditLogRelevantStatus": {1, func(p *Properties, a []string, _ string) error { p.Audit.RelevantStatus = a[0]; return nil }},
	"SecDebugLog":               {1, func(p *Properties, a []string, _ string) error { p.DebugLog = a[0]; return nil }},
	"SecDebugLogLevel": {1, func(p *Properties, a []string, _ string) error {
		n, err := parseInt("SecDebugLogLevel", a[0])
		if err != nil {
			return err
		}
		if n > 9 {
			return logging.Semanticf("SecDebugLogLevel must be between 0 and 9, got %d", n)
		}
		p.DebugLogLevel = n
		return nil
	}},
	"SecWebAppId": {1, func(p *Properties, a []string, _ string) error { p.WebAppID = a[0]; return nil }},
	"SecComponentSignature": {1, func(p *Properties, a []string, _ string) error {
		p.ComponentSignatures = append(p.ComponentSignatures, a[0])
		return nil
	}},
	"SecUploadDir":       {1, func(p *Properties, a []string, _ string) error { p.UploadDir = a[0]; return nil }},
	"SecUploadFileLimit": {1, intSetter(func(p *Properties) *int64 { return &p.UploadFileLimit })},
	"SecUploadFileMode":  {1, modeSetter(func(p *Properties) *os.FileMode { return &p.UploadFileMode })},
	"SecUploadKeepFiles": {1, func(p *Properties, a []string, _ string) error {
		if strings.EqualFold(a[0], "RelevantOnly") {
			return logging.Unsupportedf("SecUploadKeepFiles", "SecUploadKeepFiles RelevantOnly is not supported.")
		}
		return onOff(&p.UploadKeepFiles, "SecUploadKeepFiles", a[0])
	}},
	"SecTmpSaveUploadedFiles": {1, func(p *Properties, a []string, _ string) error {
		return onOff(&p.TmpSaveUploadedFiles, "SecTmpSaveUploadedFiles", a[0])
	}},
	"SecXmlExternalEntity": {1, func(p *Properties, a []string, _ string) error {
		return onOff(&p.XMLExternalEntity, "SecXmlExternalEntity", a[0])
	}},
	"SecHttpBlKey": {1, func(p *Properties, a []string, _ string) error { p.HTTPBlKey = a[0]; return nil }},
	"SecRemoteRulesFailAction": {1, func(p *Properties, a []string, _ string) error {
		return oneOf(&p.RemoteRulesFailAction, "SecRemoteRulesFailAction", a[0], "Abort", "Warn")
	}},
	"SecCookieFormat": {1, func(p *Properties, a []string, _ string) error {
		switch a[0] {
		case "0":
			p.CookieFormat = 0
			return nil
		case "1":
			return logging.Unsupportedf("SecCookieFormat", "SecCookieFormat 1 is not yet supported.")
		}
		return logging.Semanticf("SecCookieFormat: invalid format %s", a[0])
	}},
	"SecUnicodeMapFile":          {2, setUnicodeMap},
	"SecPcreMatchLimit":          {1, intSetter(func(p *Properties) *int64 { return &p.PcreMatchLimit })},
	"SecPcreMatchLimitRecursion": {1, intSetter(func(p *Properties) *int64 { return &p.PcreMatchLimitRecursion })},

	// accepted for compatibility, nothing to record
	"SecTmpDir":            {1, ignore},
	"SecDataDir":           {1, ignore},
	"SecCollectionTimeout": {1, ignore},
	"SecStatusEngine":      {1, ignore},
})

// DirectiveNames lists the scalar setting directives.
func DirectiveNames() []string {
	return setters.Names()
}

// Set applies directive name. dir is the directory of the declaring file.
func (p *Properties) Set(name string, args []string, dir string) error {
	s, ok := setters.Lookup(name)
	if !ok {
		return logging.Syntaxf("Unknown directive: %s", name)
	}
	canonical, _ := setters.Canonical(name)
	switch {
	case s.args < 0 && len(args) == 0:
		return logging.Syntaxf("%s expects at least one argument", canonical)
	case s.args >= 0 && len(args) != s.args:
		return logging.Syntaxf("%s expects %d argument(s), got %d", canonical, s.args, len(args))
	}
	return s.set(p, args, dir)
}

func ignore(*Properties, []string, string) error { return nil }

func onOff(dst *bool, name, value string) error {
	switch strings.ToLower(value) {
	case "on", "true":
		*dst = true
	case "off", "false":
		*dst = false
	default:
		return logging.Semanticf("%s expects On or Off, got %s", name, value)
	}
	return nil
}

func oneOf[T ~string](dst *T, name, value string, allowed ...T) error {
	for _, candidate := range allowed {
		if strings.EqualFold(string(candidate), value) {
			*dst = candidate
			return nil
		}
	}
	names := make([]string, 0, len(allowed))
	for _, candidate := range allowed {
		names = append(names, string(candidate))
	}
	return logging.Semanticf("%s expects one of %s, got %s", name, strings.Join(names, "|"), value)
}

func parseInt(name, value string) (int64, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil || n < 0 {
		return 0, logging.Semanticf("%s expects a non-negative number, got %s", name, value)
	}
	return n, nil
}

func intSetter(field func(*Properties) *int64) func(*Properties, []string, string) error {
	return func(p *Properties, a []string, _ string) error {
		n, err := parseInt("value", a[0])
		if err != nil {
			return err
		}
		*field(p) = n
		return nil
	}
}

func modeSetter(field func(*Properties) *os.FileMode) func(*Properties, []string, string) error {
	return func(p *Properties, a []string, _ string) error {
		n, err := strconv.ParseUint(a[0], 8, 32)
		if err != nil || n > 0o777 {
			return logging.Semanticf("invalid file mode %s", a[0])
		}
		*field(p) = os.FileMode(n)
		return nil
	}
}

func setUnicodeMap(p *Properties, a []string, dir string) error {
	path := a[0]
	if !filepath.IsAbs(path) && dir != "" {
		path = filepath.Join(dir, path)
	}
	page, err := strconv.ParseInt(a[1], 10, 64)
	if err != nil {
		return logging.Semanticf("Failed to locate the unicode map file code page: %s", a[1])
	}
	if _, err := os.Stat(path); err != nil {
		return logging.NewError(logging.KindSemantic, "Failed to locate the unicode map file from: "+a[0], err)
	}
	p.UnicodeMapFile = path
	p.UnicodeCodePage = page
	return nil
}
