package versioning

import (
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

var bomUTF8 = []byte{0xEF, 0xBB, 0xBF}

// AddVersionText adds text as a new version, stored as UTF-8 with a byte order mark.
func (o *Overview) AddVersionText(text string, description string) (Entry, error) {
	content := make([]byte, 0, len(bomUTF8)+len(text))
	content = append(content, bomUTF8...)
	content = append(content, text...)
	return o.AddVersion(content, description)
}

// VersionContent returns the content of version n as text. A leading byte
// order mark selects the encoding, otherwise UTF-8 is assumed.
func (o *Overview) VersionContent(n int) (string, error) {
	raw, err := o.VersionContentRaw(n)
	if err != nil {
		return "", err
	}
	return decodeText(raw)
}

func decodeText(raw []byte) (string, error) {
	dec := unicode.BOMOverride(unicode.UTF8.NewDecoder())
	out, _, err := transform.Bytes(dec, raw)
	if err != nil {
		return "", err
	}
	return string(out), nil
}
