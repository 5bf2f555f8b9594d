package operators

import "github.com/klyr/seclang/internal/keyword"

type Kind int

const (
	_ Kind = iota
	BeginsWith
	Contains
	ContainsWord
	DetectSQLi
	DetectXSS
	EndsWith
	Eq
	FuzzyHash
	Ge
	GeoLookup
	GsbLookup
	Gt
	InspectFile
	IPMatch
	IPMatchFromFile
	Le
	Lt
	NoMatch
	Pm
	PmFromFile
	Rbl
	Rsub
	Rx
	StrEq
	StrMatch
	UnconditionalMatch
	ValidateByteRange
	ValidateDTD
	ValidateHash
	ValidateSchema
	ValidateURLEncoding
	ValidateUTF8Encoding
	VerifyCC
	VerifyCPF
	VerifySSN
	Within
)

type definition struct {
	kind Kind
	name string
	// argument is required, forbidden, or may hold %{} macros
	arg argShape
}

type argShape int

const (
	argNone argShape = iota
	argLiteral
	argMacro
	argOptional
)

var definitions = []definition{
	{BeginsWith, "beginsWith", argMacro},
	{Contains, "contains", argMacro},
	{ContainsWord, "containsWord", argMacro},
	{DetectSQLi, "detectSQLi", argNone},
	{DetectXSS, "detectXSS", argNone},
	{EndsWith, "endsWith", argMacro},
	{Eq, "eq", argMacro},
	{FuzzyHash, "fuzzyHash", argLiteral},
	{Ge, "ge", argMacro},
	{GeoLookup, "geoLookup", argOptional},
	{GsbLookup, "gsbLookup", argLiteral},
	{Gt, "gt", argMacro},
	{InspectFile, "inspectFile", argLiteral},
	{IPMatch, "ipMatch", argLiteral},
	{IPMatchFromFile, "ipMatchFromFile", argLiteral},
	{Le, "le", argMacro},
	{Lt, "lt", argMacro},
	{NoMatch, "noMatch", argOptional},
	{Pm, "pm", argLiteral},
	{PmFromFile, "pmFromFile", argLiteral},
	{Rbl, "rbl", argLiteral},
	{Rsub, "rsub", argLiteral},
	{Rx, "rx", argOptional},
	{StrEq, "streq", argMacro},
	{StrMatch, "strmatch", argLiteral},
	{UnconditionalMatch, "unconditionalMatch", argOptional},
	{ValidateByteRange, "validateByteRange", argLiteral},
	{ValidateDTD, "validateDTD", argLiteral},
	{ValidateHash, "validateHash", argLiteral},
	{ValidateSchema, "validateSchema", argLiteral},
	{ValidateURLEncoding, "validateUrlEncoding", argOptional},
	{ValidateUTF8Encoding, "validateUtf8Encoding", argOptional},
	{VerifyCC, "verifyCC", argLiteral},
	{VerifyCPF, "verifyCPF", argLiteral},
	{VerifySSN, "verifySSN", argLiteral},
	{Within, "within", argMacro},
}

var aliases = map[string]Kind{
	"pmf":      PmFromFile,
	"ipMatchF": IPMatchFromFile,
}

var (
	byKind = map[Kind]definition{}
	table  *keyword.Table[Kind]
)

func init() {
	entries := map[string]Kind{}
	for _, s := range definitions {
		byKind[s.kind] = s
		entries[s.name] = s.kind
	}
	for name, kind := range aliases {
		entries[name] = kind
	}
	table = keyword.New(entries)
}

func (k Kind) String() string {
	if s, ok := byKind[k]; ok {
		return s.name
	}
	return "unknown"
}

// Names lists every accepted operator keyword, aliases included.
func Names() []string {
	return table.Names()
}
