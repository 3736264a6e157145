// checker.go — Method-signature table and the call-argument checker that
// runs as the standing pre-processor of every dispatch.
package api

import (
	"fmt"
	"math"
	"strings"
	"sync"
)

// methodSig is one parsed overload: the declared parameter types (return
// type appended last) and how many trailing parameters carry defaults.
type methodSig struct {
	types     []string
	defaulted int
}

var (
	sigOnce sync.Once
	// apiSigs keeps all overloads of an apiId in registration order.
	apiSigs map[string][]methodSig
)

// parseMethodSignature splits "(a,b?):ret" into parameter types plus the
// return type, counting '?'-suffixed defaulted parameters.
func parseMethodSignature(signature string) methodSig {
	sig := methodSig{}
	var token strings.Builder
	for i := 0; i < len(signature); i++ {
		ch := signature[i]
		switch {
		case ch >= 'a' && ch <= 'z' || ch >= 'A' && ch <= 'Z' || ch == '[' || ch == ']':
			token.WriteByte(ch)
		case ch == '?':
			sig.defaulted++
		case ch == ',' || ch == ')':
			if token.Len() > 0 {
				sig.types = append(sig.types, token.String())
				token.Reset()
			}
			if ch == ')' {
				// the rest after ':' is the return type
				sig.types = append(sig.types, signature[i+2:])
				return sig
			}
		}
	}
	return sig
}

// parseFrontendMethodSignatures builds the signature table from the static
// class definitions.
func parseFrontendMethodSignatures() {
	apiSigs = make(map[string][]methodSig)
	for _, classDef := range FrontendClassDefs {
		for _, method := range classDef.Methods {
			apiSigs[method.Name] = append(apiSigs[method.Name], parseMethodSignature(method.Signature))
		}
	}
}

func signatureTable() map[string][]methodSig {
	sigOnce.Do(parseFrontendMethodSignatures)
	return apiSigs
}

// checkArgClassType validates a class-typed slot: the value must be a string
// resolving in the backend-object table. Returns false when expect is not a
// class type.
func checkArgClassType(expect string, value any, callErr *CallError) bool {
	known := false
	for _, def := range FrontendClassDefs {
		if def.Name == expect {
			known = true
			break
		}
	}
	if !known {
		return false
	}
	ref, ok := value.(string)
	if !ok {
		*callErr = NewErrorMsg(ErrInvalidInput, "Expect "+expect)
		return true
	}
	if !HasBackendObject(ref) {
		*callErr = NewErrorMsg(ErrInternal, "Bad object ref")
	}
	return true
}

// checkArgJSONType validates a json-object-typed slot property by property,
// recursing on property types and rejecting unknown properties. Returns
// false when expect is not a json type.
func checkArgJSONType(expect string, value any, callErr *CallError) bool {
	var def *JSONDef
	for _, d := range FrontendJSONDefs {
		if d.Name == expect {
			def = d
			break
		}
	}
	if def == nil {
		return false
	}
	object, ok := value.(map[string]any)
	if !ok {
		*callErr = NewErrorMsg(ErrInvalidInput, "Expect "+expect)
		return true
	}
	remaining := make(map[string]struct{}, len(object))
	for name := range object {
		remaining[name] = struct{}{}
	}
	for _, prop := range def.Props {
		propValue, present := object[prop.Name]
		if !present {
			if prop.Required {
				*callErr = NewErrorMsg(ErrInvalidInput, "Missing property "+prop.Name)
				return true
			}
			continue
		}
		delete(remaining, prop.Name)
		checkArgType(prop.Type, propValue, !prop.Required, callErr)
		if callErr.Code != NoError {
			callErr.Message = "Illegal value of property '" + prop.Name + "': " + callErr.Message
			return true
		}
	}
	if len(remaining) > 0 {
		*callErr = NewErrorMsg(ErrInvalidInput, "Illegal property of "+expect)
	}
	return true
}

// checkArgArrayType validates an array-typed slot element by element.
// Returns false when expect is not an array type.
func checkArgArrayType(expect string, value any, callErr *CallError) bool {
	if !strings.HasPrefix(expect, "[") || !strings.HasSuffix(expect, "]") {
		return false
	}
	items, ok := value.([]any)
	if !ok {
		*callErr = NewErrorMsg(ErrInvalidInput, "Expect array")
		return true
	}
	elemType := expect[1 : len(expect)-1]
	for _, item := range items {
		checkArgType(elemType, item, false, callErr)
		if callErr.Code != NoError {
			return true
		}
	}
	return true
}

// checkArgType validates one value against its declared slot type. Defaulted
// slots accept null.
func checkArgType(expect string, value any, isDefArg bool, callErr *CallError) {
	if isDefArg && value == nil {
		return
	}
	if checkArgClassType(expect, value, callErr) ||
		checkArgJSONType(expect, value, callErr) ||
		checkArgArrayType(expect, value, callErr) {
		return
	}
	number, isNumber := value.(float64)
	isInteger := isNumber && number == math.Trunc(number)
	switch expect {
	case "int":
		if !isInteger {
			*callErr = NewErrorMsg(ErrInvalidInput, "Expect integer")
			return
		}
		if number < 0 {
			*callErr = NewErrorMsg(ErrInvalidInput, "Expect integer which cannot be less than 0")
		}
	case "float":
		if !isNumber {
			*callErr = NewErrorMsg(ErrInvalidInput, "Expect float")
		}
	case "bool":
		if _, ok := value.(bool); !ok {
			*callErr = NewErrorMsg(ErrInvalidInput, "Expect boolean")
		}
	case "string":
		if _, ok := value.(string); !ok {
			*callErr = NewErrorMsg(ErrInvalidInput, "Expect string")
		}
	default:
		*callErr = NewErrorMsg(ErrInternal, "Unknown target type "+expect)
	}
}

// CheckCallInfo validates the call against every overload of its apiId in
// registration order; the reply carries the failure of the last overload
// tried when none accepts the argument list. ApiIds absent from the table pass
// unchecked.
func CheckCallInfo(in *CallInfo, out *ReplyInfo) {
	out.ResultValue = nil
	overloads, found := signatureTable()[in.ApiID]
	if !found {
		return
	}
	for _, sig := range overloads {
		out.Exception = OK()
		// the last entry of types is the return type
		maxArgc := len(sig.types) - 1
		minArgc := maxArgc - sig.defaulted
		argc := len(in.ParamList)
		if argc > maxArgc || argc < minArgc {
			out.Exception = NewErrorMsg(ErrInvalidInput, "Illegal argument count")
			continue
		}
		accepted := true
		for idx := 0; idx < argc; idx++ {
			checkArgType(sig.types[idx], in.ParamList[idx], idx >= minArgc, &out.Exception)
			if out.Exception.Code != NoError {
				out.Exception.Message = fmt.Sprintf("Check arg%d failed: %s", idx, out.Exception.Message)
				accepted = false
				break
			}
		}
		if accepted {
			return
		}
	}
}
