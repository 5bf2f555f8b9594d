package operators

import (
	"fmt"
	"net/netip"
	"regexp"
	"strconv"
	"strings"

	"github.com/klyr/seclang/internal/logging"
	"github.com/klyr/seclang/internal/runtimestring"
)

// Init compiles the operator argument. Calling it twice is a no-op.
func (o *Operator) Init() error {
	if o.initialized {
		return nil
	}

	var err error
	switch o.Kind {
	case Rx:
		err = o.initRegex()
	case VerifyCC, VerifyCPF, VerifySSN:
		err = o.compile(o.Param)
	case Pm:
		err = o.initPhrases(strings.Fields(o.Param))
	case PmFromFile:
		err = o.initPhraseFiles()
	case IPMatch:
		err = o.initNetworks(splitList(o.Param), o.Param)
	case IPMatchFromFile:
		err = o.initNetworkFile()
	case Eq, Ge, Gt, Le, Lt:
		err = o.initNumber()
	case ValidateByteRange:
		err = o.initByteRanges()
	case ValidateDTD, ValidateSchema, InspectFile:
		err = o.initFileArgument()
	case GeoLookup:
		return logging.Unsupportedf(o.Name, "This version was not compiled with GeoIP or MaxMind support.")
	case FuzzyHash:
		return logging.Unsupportedf(o.Name, "Operator @fuzzyHash requires ssdeep support, which is not part of this build.")
	case ValidateHash, GsbLookup, Rsub:
		return logging.Unsupportedf(o.Name, "Operator @%s is not supported.", o.Name)
	}
	if err != nil {
		return err
	}

	o.initialized = true
	return nil
}

func (o *Operator) initRegex() error {
	if strings.Contains(o.Param, "%{") {
		arg, err := runtimestring.Parse(o.Param)
		if err != nil {
			return err
		}
		if arg.HasMacros() {
			// compiled per transaction once the macros are known
			o.Arg = arg
			return nil
		}
	}
	return o.compile(o.Param)
}

func (o *Operator) compile(pattern string) error {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return logging.NewError(logging.KindSemantic,
			fmt.Sprintf("Failed to compile regular expression %q for @%s: %v", pattern, o.Name, err), err)
	}
	o.regex = re
	return nil
}

func (o *Operator) initPhrases(phrases []string) error {
	m, err := newPhraseMatcher(phrases)
	if err != nil {
		return logging.NewError(logging.KindSemantic, fmt.Sprintf("Operator @%s: %v", o.Name, err), err)
	}
	o.phrases = m
	return nil
}

func (o *Operator) initPhraseFiles() error {
	var phrases []string
	for _, path := range strings.Fields(o.Param) {
		if isRemote(path) {
			return logging.Unsupportedf(o.Name, "Loading patterns from remote resources is not supported: %s", path)
		}
		resolved := resolvePath(o.FileRef, path)
		loaded, err := readPatterns(resolved)
		if err != nil {
			return logging.NewError(logging.KindSemantic, fmt.Sprintf("Failed to open file: %s", resolved), err)
		}
		o.files = append(o.files, resolved)
		phrases = append(phrases, loaded...)
	}
	return o.initPhrases(phrases)
}

func (o *Operator) initNetworks(entries []string, source string) error {
	if len(entries) == 0 {
		return logging.Semanticf("Operator @%s requires at least one address", o.Name)
	}
	for _, entry := range entries {
		prefix, err := parseNetwork(entry)
		if err != nil {
			return logging.NewError(logging.KindSemantic,
				fmt.Sprintf("Could not add entry %q from: %s", entry, source), err)
		}
		o.networks = append(o.networks, prefix)
	}
	return nil
}

func (o *Operator) initNetworkFile() error {
	if isRemote(o.Param) {
		return logging.Unsupportedf(o.Name, "Loading addresses from remote resources is not supported: %s", o.Param)
	}
	resolved := resolvePath(o.FileRef, strings.TrimSpace(o.Param))
	entries, err := readPatterns(resolved)
	if err != nil {
		return logging.NewError(logging.KindSemantic, fmt.Sprintf("Failed to open file: %s", resolved), err)
	}
	o.files = append(o.files, resolved)
	return o.initNetworks(entries, resolved)
}

func parseNetwork(entry string) (netip.Prefix, error) {
	if strings.Contains(entry, "/") {
		prefix, err := netip.ParsePrefix(entry)
		if err != nil {
			return netip.Prefix{}, err
		}
		return prefix.Masked(), nil
	}
	addr, err := netip.ParseAddr(entry)
	if err != nil {
		return netip.Prefix{}, err
	}
	return netip.PrefixFrom(addr, addr.BitLen()), nil
}

func (o *Operator) initNumber() error {
	if o.Arg.HasMacros() {
		return nil
	}
	value := strings.TrimSpace(o.Param)
	n, err := strconv.Atoi(value)
	if err != nil {
		return logging.NewError(logging.KindSemantic,
			fmt.Sprintf("Operator @%s expects a number, got %q", o.Name, value), err)
	}
	o.number = n
	o.hasNumber = true
	return nil
}

func (o *Operator) initByteRanges() error {
	for _, item := range splitList(o.Param) {
		lo, hi, isRange := strings.Cut(item, "-")
		start, err := parseByte(lo)
		if err != nil {
			return logging.Semanticf("Invalid range start value: %s", item)
		}
		end := start
		if isRange {
			if end, err = parseByte(hi); err != nil {
				return logging.Semanticf("Invalid range end value: %s", item)
			}
		}
		if start > end {
			return logging.Semanticf("Invalid range: %s", item)
		}
		o.byteRanges = append(o.byteRanges, [2]byte{start, end})
	}
	if len(o.byteRanges) == 0 {
		return logging.Semanticf("Operator @%s requires at least one range", o.Name)
	}
	return nil
}

func parseByte(s string) (byte, error) {
	n, err := strconv.ParseUint(strings.TrimSpace(s), 10, 8)
	return byte(n), err
}

func (o *Operator) initFileArgument() error {
	resolved := resolvePath(o.FileRef, strings.TrimSpace(o.Param))
	if err := requireFile(resolved); err != nil {
		return logging.NewError(logging.KindSemantic, fmt.Sprintf("Failed to open file: %s", resolved), err)
	}
	o.files = append(o.files, resolved)
	return nil
}

func splitList(raw string) []string {
	fields := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t'
	})
	return fields
}
