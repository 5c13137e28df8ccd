package httpcodec

// Method is one of the HTTP/1.1 request methods this codec recognizes.
type Method uint8

// Recognized methods. MethodUnknown is never produced by a successful
// parse — an unrecognized token yields ParseErrorKind MethodNotRecognized.
const (
	MethodUnknown Method = iota
	MethodGET
	MethodPOST
	MethodPUT
	MethodDELETE
	MethodHEAD
	MethodOPTIONS
	MethodPATCH
)

func (m Method) String() string {
	switch m {
	case MethodGET:
		return "GET"
	case MethodPOST:
		return "POST"
	case MethodPUT:
		return "PUT"
	case MethodDELETE:
		return "DELETE"
	case MethodHEAD:
		return "HEAD"
	case MethodOPTIONS:
		return "OPTIONS"
	case MethodPATCH:
		return "PATCH"
	default:
		return "UNKNOWN"
	}
}

var methodTable = map[string]Method{
	"GET":     MethodGET,
	"POST":    MethodPOST,
	"PUT":     MethodPUT,
	"DELETE":  MethodDELETE,
	"HEAD":    MethodHEAD,
	"OPTIONS": MethodOPTIONS,
	"PATCH":   MethodPATCH,
}

// parseMethod maps a request-line token to a Method. ok is false for any
// token outside the supported set.
func parseMethod(tok string) (Method, bool) {
	m, ok := methodTable[tok]
	return m, ok
}
