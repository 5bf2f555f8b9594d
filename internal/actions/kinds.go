package actions

import "github.com/klyr/seclang/internal/keyword"

// Kind is fixed per keyword.
type Kind int

const (
	Meta Kind = iota
	Disruptive
	Control
	Transformation
)

func (k Kind) String() string {
	switch k {
	case Disruptive:
		return "disruptive"
	case Control:
		return "control"
	case Transformation:
		return "transformation"
	default:
		return "meta"
	}
}

// Stage is when the engine runs an action.
type Stage int

const (
	// Configuration actions only shape the rule (id, phase, chain...).
	Configuration Stage = iota
	BeforeMatch
	OnlyIfMatch
)

func (s Stage) String() string {
	switch s {
	case BeforeMatch:
		return "before-match"
	case OnlyIfMatch:
		return "only-if-match"
	default:
		return "configuration"
	}
}

type param int

const (
	paramNone param = iota
	paramRequired
	paramOptional
)

type definition struct {
	kind        Kind
	stage       Stage
	param       param
	unsupported bool
}

var definitions = map[string]definition{
	"allow":    {Disruptive, OnlyIfMatch, paramOptional, false},
	"block":    {Disruptive, OnlyIfMatch, paramNone, false},
	"deny":     {Disruptive, OnlyIfMatch, paramNone, false},
	"drop":     {Disruptive, OnlyIfMatch, paramNone, false},
	"pass":     {Disruptive, OnlyIfMatch, paramNone, false},
	"redirect": {Disruptive, OnlyIfMatch, paramRequired, false},
	"proxy":    {Disruptive, OnlyIfMatch, paramRequired, true},
	"pause":    {Disruptive, OnlyIfMatch, paramRequired, true},

	"accuracy": {Meta, Configuration, paramRequired, false},
	"chain":    {Meta, Configuration, paramNone, false},
	"id":       {Meta, Configuration, paramRequired, false},
	"maturity": {Meta, Configuration, paramRequired, false},
	"phase":    {Meta, Configuration, paramRequired, false},
	"rev":      {Meta, Configuration, paramRequired, false},
	"ver":      {Meta, Configuration, paramRequired, false},

	"auditlog":     {Meta, OnlyIfMatch, paramNone, false},
	"capture":      {Meta, OnlyIfMatch, paramNone, false},
	"exec":         {Meta, OnlyIfMatch, paramRequired, false},
	"expirevar":    {Meta, OnlyIfMatch, paramRequired, false},
	"initcol":      {Meta, OnlyIfMatch, paramRequired, false},
	"log":          {Meta, OnlyIfMatch, paramNone, false},
	"logdata":      {Meta, OnlyIfMatch, paramRequired, false},
	"msg":          {Meta, OnlyIfMatch, paramRequired, false},
	"multiMatch":   {Meta, OnlyIfMatch, paramNone, false},
	"noauditlog":   {Meta, OnlyIfMatch, paramNone, false},
	"nolog":        {Meta, OnlyIfMatch, paramNone, false},
	"setenv":       {Meta, OnlyIfMatch, paramRequired, false},
	"setrsc":       {Meta, OnlyIfMatch, paramRequired, false},
	"setsid":       {Meta, OnlyIfMatch, paramRequired, false},
	"setuid":       {Meta, OnlyIfMatch, paramRequired, false},
	"setvar":       {Meta, OnlyIfMatch, paramRequired, false},
	"severity":     {Meta, OnlyIfMatch, paramRequired, false},
	"skip":         {Meta, OnlyIfMatch, paramRequired, false},
	"skipAfter":    {Meta, OnlyIfMatch, paramRequired, false},
	"status":       {Meta, OnlyIfMatch, paramRequired, false},
	"tag":          {Meta, OnlyIfMatch, paramRequired, false},
	"xmlns":        {Meta, OnlyIfMatch, paramRequired, false},
	"append":       {Meta, OnlyIfMatch, paramRequired, true},
	"deprecatevar": {Meta, OnlyIfMatch, paramRequired, true},
	"prepend":      {Meta, OnlyIfMatch, paramRequired, true},

	"sanitiseArg":            {Meta, OnlyIfMatch, paramRequired, true},
	"sanitiseMatched":        {Meta, OnlyIfMatch, paramNone, true},
	"sanitiseMatchedBytes":   {Meta, OnlyIfMatch, paramOptional, true},
	"sanitiseRequestHeader":  {Meta, OnlyIfMatch, paramRequired, true},
	"sanitiseResponseHeader": {Meta, OnlyIfMatch, paramRequired, true},

	"ctl": {Control, OnlyIfMatch, paramRequired, false},
	"t":   {Transformation, BeforeMatch, paramRequired, false},
}

var table = keyword.New(definitions)

var transformations = keyword.New(map[string]struct{}{
	"base64Decode": {}, "base64DecodeExt": {}, "base64Encode": {}, "cmdLine": {},
	"compressWhitespace": {}, "cssDecode": {}, "escapeSeqDecode": {}, "hexDecode": {},
	"hexEncode": {}, "htmlEntityDecode": {}, "jsDecode": {}, "length": {}, "lowercase": {},
	"md5": {}, "none": {}, "normalisePath": {}, "normalisePathWin": {}, "normalizePath": {},
	"normalizePathWin": {}, "parityEven7bit": {}, "parityOdd7bit": {}, "parityZero7bit": {},
	"removeComments": {}, "removeCommentsChar": {}, "removeNulls": {}, "removeWhitespace": {},
	"replaceComments": {}, "replaceNulls": {}, "sha1": {}, "sqlHexDecode": {}, "trim": {},
	"trimLeft": {}, "trimRight": {}, "uppercase": {}, "urlDecode": {}, "urlDecodeUni": {},
	"urlEncode": {}, "utf8toUnicode": {},
})

// TransformationNames lists the accepted t: names.
func TransformationNames() []string {
	return transformations.Names()
}
