package bridge

import (
	"encoding/json"

	"github.com/mailru/easyjson/jlexer"
	"github.com/mailru/easyjson/jwriter"
	"github.com/pkg/errors"
)

// envelope is the wire form of a front-end call:
//
//	{"type":"invoke","object":"clock","method":"now","id":7,"args":[...]}
type envelope struct {
	Type   string
	Object string
	Method string
	ID     int64
	Args   []any
}

const envelopeTypeInvoke = "invoke"

func decodeEnvelope(data []byte) (*envelope, error) {
	l := jlexer.Lexer{Data: data}
	var e envelope

	l.Delim('{')
	for !l.IsDelim('}') {
		key := l.UnsafeFieldName(false)
		l.WantColon()
		switch key {
		case "type":
			e.Type = l.String()
		case "object":
			e.Object = l.String()
		case "method":
			e.Method = l.String()
		case "id":
			e.ID = l.Int64()
		case "args":
			if l.IsNull() {
				l.Skip()
				break
			}
			l.Delim('[')
			for !l.IsDelim(']') {
				e.Args = append(e.Args, l.Interface())
				l.WantComma()
			}
			l.Delim(']')
		default:
			l.SkipRecursive()
		}
		l.WantComma()
	}
	l.Delim('}')
	l.Consumed()

	if err := l.Error(); err != nil {
		return nil, errors.Wrap(err, "decoding bridge envelope")
	}
	if e.Type != envelopeTypeInvoke {
		return nil, errors.Errorf("unknown bridge envelope type %q", e.Type)
	}
	return &e, nil
}

// encodeReply builds the JSON reply delivered back into the page. Exactly
// one of result and callErr is set.
func encodeReply(id int64, result any, callErr error) ([]byte, error) {
	w := jwriter.Writer{}

	w.RawString(`{"id":`)
	w.Int64(id)
	if callErr != nil {
		w.RawString(`,"error":`)
		w.String(callErr.Error())
	} else {
		w.RawString(`,"result":`)
		writeAny(&w, result)
	}
	w.RawByte('}')

	return w.BuildBytes()
}

func writeAny(w *jwriter.Writer, v any) {
	switch v := v.(type) {
	case nil:
		w.RawString("null")
	case bool:
		w.Bool(v)
	case string:
		w.String(v)
	case float64:
		w.Float64(v)
	case int64:
		w.Int64(v)
	case int:
		w.Int(v)
	case []any:
		w.RawByte('[')
		for i, item := range v {
			if i > 0 {
				w.RawByte(',')
			}
			writeAny(w, item)
		}
		w.RawByte(']')
	case map[string]any:
		w.RawByte('{')
		first := true
		for key, item := range v {
			if !first {
				w.RawByte(',')
			}
			first = false
			w.String(key)
			w.RawByte(':')
			writeAny(w, item)
		}
		w.RawByte('}')
	default:
		// Anything else round-trips through the generic marshaler.
		w.Raw(json.Marshal(v))
	}
}
