package filters

import "github.com/wudi/pdfcompose/ir/raw"

// ExtractFilters reads Filter and DecodeParms entries from a stream dictionary.
// The returned params slice is aligned with names; missing entries are nil.
func ExtractFilters(dict *raw.DictObj) ([]string, []*raw.DictObj) {
	var names []string
	filterObj, ok := dict.Get("Filter")
	if !ok {
		return nil, nil
	}
	switch f := filterObj.(type) {
	case raw.NameObj:
		names = append(names, f.Val)
	case *raw.ArrayObj:
		for _, item := range f.Items {
			if n, ok := item.(raw.NameObj); ok {
				names = append(names, n.Val)
			}
		}
	}

	params := make([]*raw.DictObj, len(names))
	pObj, ok := dict.Get("DecodeParms")
	if !ok {
		pObj, ok = dict.Get("DP")
	}
	if ok {
		switch p := pObj.(type) {
		case *raw.DictObj:
			if len(params) > 0 {
				params[0] = p
			}
		case *raw.ArrayObj:
			for i, item := range p.Items {
				if d, ok := item.(*raw.DictObj); ok && i < len(params) {
					params[i] = d
				}
			}
		}
	}
	return names, params
}

// expandAbbreviation maps inline-image filter abbreviations to full names.
func expandAbbreviation(name string) string {
	switch name {
	case "Fl":
		return "FlateDecode"
	case "AHx":
		return "ASCIIHexDecode"
	case "A85":
		return "ASCII85Decode"
	case "RL":
		return "RunLengthDecode"
	case "DCT":
		return "DCTDecode"
	case "LZW":
		return "LZWDecode"
	}
	return name
}

func intParam(params *raw.DictObj, key string, def int) int {
	if params == nil {
		return def
	}
	if v, ok := params.Int(key); ok {
		return int(v)
	}
	return def
}
