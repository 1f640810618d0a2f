/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

package mockdebug

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	dapsession "github.com/cvet/fonline-sub001/internal/dap"
	"github.com/cvet/fonline-sub001/internal/mockruntime"
)

const (
	memoryReferencePrefix = "mem"
	lazyMarker            = "lazy"
)

var (
	floatPrefixRegexp = regexp.MustCompile(`^[+-]?(Infinity|(\d+\.?\d*|\.\d+)([eE][+-]?\d+)?)`)
	intPrefixRegexp   = regexp.MustCompile(`^[+-]?\d+`)
	hexPrefixRegexp   = regexp.MustCompile(`^[+-]?0[xX][0-9a-fA-F]+`)
)

// convertToRuntime parses a value entered by the user: true, false, a quoted string or a number.
// Anything else is kept as text.
func convertToRuntime(value string) any {
	value = strings.TrimSpace(value)

	switch {
	case value == "true":
		return true
	case value == "false":
		return false
	case value == "":
		return value
	case value[0] == '\'' || value[0] == '"':
		if len(value) < 2 {
			return ""
		}
		return value[1 : len(value)-1]
	}

	if n, isNumber := parseFloatPrefix(value); isNumber {
		return n
	}
	return value
}

// parseFloatPrefix parses the number at the start of s, ignoring what follows it.
func parseFloatPrefix(s string) (float64, bool) {
	prefix := floatPrefixRegexp.FindString(s)
	if prefix == "" {
		return 0, false
	}
	n, parseErr := strconv.ParseFloat(prefix, 64)
	if parseErr != nil && !math.IsInf(n, 0) {
		return 0, false
	}
	return n, true
}

// convertFromRuntime describes a runtime variable to the client. Variables that have children, are lazy,
// or expose memory get a handle.
func (a *Adapter) convertFromRuntime(v *mockruntime.RuntimeVariable) dapsession.Variable {
	value := v.Value()
	variable := dapsession.Variable{
		Name:         v.Name,
		Value:        "???",
		Type:         typeOf(value),
		EvaluateName: "$" + v.Name,
	}

	if strings.Contains(v.Name, lazyMarker) {
		// The value is revealed by expanding the variable
		variable.Value = "lazy var"
		if v.Reference == 0 {
			wrapper := mockruntime.NewRuntimeVariable("", []*mockruntime.RuntimeVariable{
				mockruntime.NewRuntimeVariable("", value),
			})
			v.Reference = a.variableHandles.Create(wrapper)
		}
		variable.VariablesReference = v.Reference
		variable.PresentationHint = &dapsession.VariablePresentationHint{Lazy: true}
	} else {
		switch tv := value.(type) {
		case []*mockruntime.RuntimeVariable:
			variable.Value = "Object"
			if v.Reference == 0 {
				v.Reference = a.variableHandles.Create(v)
			}
			variable.VariablesReference = v.Reference
		case float64:
			if math.Trunc(tv) == tv {
				variable.Value = a.formatNumber(tv)
				variable.VariableMenuContext = "simple"
				variable.Type = "integer"
			} else {
				variable.Value = formatFloat(tv)
				variable.Type = "float"
			}
		case string:
			variable.Value = `"` + tv + `"`
		case bool:
			variable.Value = strconv.FormatBool(tv)
		default:
			variable.Value = typeOf(value)
		}
	}

	if v.Memory() != nil {
		if v.Reference == 0 {
			v.Reference = a.variableHandles.Create(v)
		}
		variable.MemoryReference = strconv.Itoa(v.Reference)
	}

	return variable
}

// typeOf names the kind of a runtime value the way the mock language reports it.
func typeOf(value any) string {
	switch value.(type) {
	case float64:
		return "number"
	case string:
		return "string"
	case bool:
		return "boolean"
	case nil:
		return "undefined"
	default:
		return "object"
	}
}

func (a *Adapter) formatNumber(n float64) string {
	if math.IsInf(n, 0) {
		return formatFloat(n)
	}
	if a.valuesInHex {
		return "0x" + strconv.FormatInt(int64(n), 16)
	}
	return strconv.FormatInt(int64(n), 10)
}

func formatFloat(n float64) string {
	switch {
	case math.IsInf(n, 1):
		return "Infinity"
	case math.IsInf(n, -1):
		return "-Infinity"
	default:
		return strconv.FormatFloat(n, 'f', -1, 64)
	}
}

// formatAddress renders an instruction address as a memory reference.
func (a *Adapter) formatAddress(address int) string {
	if a.addressesInHex {
		return fmt.Sprintf("%s0x%08x", memoryReferencePrefix, address)
	}
	return memoryReferencePrefix + strconv.Itoa(address)
}

// parseMemoryReference parses the address of a memory reference: the reference without its
// three character prefix is a decimal or 0x-prefixed hexadecimal number, possibly followed by other text.
func parseMemoryReference(reference string) (int, bool) {
	if len(reference) < len(memoryReferencePrefix) {
		return 0, false
	}
	return parseIntPrefix(strings.TrimSpace(reference[len(memoryReferencePrefix):]))
}

func parseIntPrefix(s string) (int, bool) {
	if hex := hexPrefixRegexp.FindString(s); hex != "" {
		n, parseErr := strconv.ParseInt(hex, 0, 64)
		return int(n), parseErr == nil
	}
	if dec := intPrefixRegexp.FindString(s); dec != "" {
		n, parseErr := strconv.ParseInt(dec, 10, 64)
		return int(n), parseErr == nil
	}
	return 0, false
}
