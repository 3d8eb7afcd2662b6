package wasmtest

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestModule_Encode_Empty(t *testing.T) {
	got := Module{}.Encode()
	assert.Equal(t, append(append([]byte{}, magic...), version...), got)
}

func TestModule_Encode_TypeAndExportSection(t *testing.T) {
	m := Module{
		Types: []FuncType{{Params: 0, Results: 0}},
		Funcs: []Func{{Type: 0, Body: []byte{opEnd}}},
		Exports: []Export{
			{Name: "caeles_main", Kind: externFunc, Idx: 0},
		},
	}
	got := m.Encode()

	expected := append(append([]byte{}, magic...), version...)
	expected = append(expected, sectionType, 0x04, 0x01, 0x60, 0x00, 0x00)
	expected = append(expected, sectionFunction, 0x02, 0x01, 0x00)
	expected = append(expected, sectionExport, 0x0f, 0x01,
		0x0b, 'c', 'a', 'e', 'l', 'e', 's', '_', 'm', 'a', 'i', 'n', externFunc, 0x00)
	expected = append(expected, sectionCode, 0x04, 0x01, 0x02, 0x00, opEnd)

	assert.Equal(t, expected, got)
}

func TestValidCapsule_ExportsMemoryAndEntry(t *testing.T) {
	b := ValidCapsule()
	assert.Equal(t, magic, b[:4])
	assert.Equal(t, version, b[4:8])
	assert.Contains(t, string(b), "memory")
	assert.Contains(t, string(b), "caeles_main")
}

func TestHostCallingCapsule_EmbedsPayload(t *testing.T) {
	b := HostCallingCapsule("host_log", "hello")
	assert.Contains(t, string(b), "hello")
	assert.Contains(t, string(b), "caeles")
	assert.Contains(t, string(b), "host_log")
}
