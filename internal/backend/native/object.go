package native

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/lumen-lang/lumen/internal/runtime"
)

// Runtime helpers the artifact imports. They appear as undefined global
// symbols, resolved at link time against the runtime static library.
var importedHelpers = []string{
	"lum_ctx_new",
	"lum_ctx_free",
	"lum_abi_check",
	"lum_global",
	"lum_run_effect",
}

// BuildObject writes an ELF64 relocatable object holding the machine
// code of every typed specialization, the required ABI version string,
// and the unresolved runtime-helper imports. Any specialization that
// cannot be compiled aborts the whole artifact.
func BuildObject(p *Program) ([]byte, error) {
	type sym struct {
		name    string
		offset  uint64
		size    uint64
		defined bool
		object  bool
	}

	var text []byte
	var syms []sym
	for _, def := range p.Defs {
		for _, variant := range def.Variants {
			if !scalarVariant(variant) {
				continue
			}
			code, err := encodeVariant(def, variant)
			if err != nil {
				return nil, fmt.Errorf("%w: %s: %v", ErrObjectEmit, typedSymbol(def.Name, variant), err)
			}
			// 16-byte alignment between functions.
			for len(text)%16 != 0 {
				text = append(text, 0xcc)
			}
			syms = append(syms, sym{
				name:    typedSymbol(def.Name, variant),
				offset:  uint64(len(text)),
				size:    uint64(len(code)),
				defined: true,
			})
			text = append(text, code...)
		}
	}

	// The ABI version lands in .rodata so a loader can handshake before
	// touching any handle.
	rodata := append([]byte(runtime.ABIVersion), 0)
	syms = append(syms, sym{
		name:    "lum_required_abi",
		offset:  0,
		size:    uint64(len(rodata)),
		defined: true,
		object:  true,
	})
	for _, name := range importedHelpers {
		syms = append(syms, sym{name: name})
	}

	// String table.
	strtab := []byte{0}
	nameOff := make([]uint32, len(syms))
	for i, s := range syms {
		nameOff[i] = uint32(len(strtab))
		strtab = append(strtab, s.name...)
		strtab = append(strtab, 0)
	}

	shstrtab := []byte{0}
	shName := func(name string) uint32 {
		off := uint32(len(shstrtab))
		shstrtab = append(shstrtab, name...)
		shstrtab = append(shstrtab, 0)
		return off
	}
	nText := shName(".text")
	nRodata := shName(".rodata")
	nSymtab := shName(".symtab")
	nStrtab := shName(".strtab")
	nShstrtab := shName(".shstrtab")

	const (
		ehdrSize  = 64
		shdrSize  = 64
		symSize   = 24
		secText   = 1
		secRodata = 2
		secSymtab = 3
		secStrtab = 4
		secShstr  = 5
		numSec    = 6
	)

	// Symbol table: null entry first, then all globals.
	var symtab bytes.Buffer
	symtab.Write(make([]byte, symSize))
	for i, s := range syms {
		var ent [symSize]byte
		binary.LittleEndian.PutUint32(ent[0:], nameOff[i])
		var info byte
		var shndx uint16
		switch {
		case !s.defined:
			info = 1 << 4 // GLOBAL | NOTYPE
			shndx = 0     // SHN_UNDEF
		case s.object:
			info = 1<<4 | 1 // GLOBAL | OBJECT
			shndx = secRodata
		default:
			info = 1<<4 | 2 // GLOBAL | FUNC
			shndx = secText
		}
		ent[4] = info
		ent[5] = 0
		binary.LittleEndian.PutUint16(ent[6:], shndx)
		binary.LittleEndian.PutUint64(ent[8:], s.offset)
		binary.LittleEndian.PutUint64(ent[16:], s.size)
		symtab.Write(ent[:])
	}

	align8 := func(n int) int { return (n + 7) &^ 7 }
	offText := ehdrSize
	offRodata := align8(offText + len(text))
	offSymtab := align8(offRodata + len(rodata))
	offStrtab := offSymtab + symtab.Len()
	offShstrtab := offStrtab + len(strtab)
	offShdr := align8(offShstrtab + len(shstrtab))

	var out bytes.Buffer
	// ELF header: 64-bit, little-endian, relocatable, x86-64.
	out.Write([]byte{0x7f, 'E', 'L', 'F', 2, 1, 1, 0, 0, 0, 0, 0, 0, 0, 0, 0})
	le := binary.LittleEndian
	w16 := func(v uint16) { var b [2]byte; le.PutUint16(b[:], v); out.Write(b[:]) }
	w32 := func(v uint32) { var b [4]byte; le.PutUint32(b[:], v); out.Write(b[:]) }
	w64 := func(v uint64) { var b [8]byte; le.PutUint64(b[:], v); out.Write(b[:]) }
	w16(1)  // ET_REL
	w16(62) // EM_X86_64
	w32(1)  // EV_CURRENT
	w64(0)  // e_entry
	w64(0)  // e_phoff
	w64(uint64(offShdr))
	w32(0) // e_flags
	w16(ehdrSize)
	w16(0) // e_phentsize
	w16(0) // e_phnum
	w16(shdrSize)
	w16(numSec)
	w16(secShstr)

	pad := func(to int) {
		for out.Len() < to {
			out.WriteByte(0)
		}
	}
	pad(offText)
	out.Write(text)
	pad(offRodata)
	out.Write(rodata)
	pad(offSymtab)
	out.Write(symtab.Bytes())
	pad(offStrtab)
	out.Write(strtab)
	pad(offShstrtab)
	out.Write(shstrtab)
	pad(offShdr)

	shdr := func(name uint32, typ uint32, flags uint64, off, size uint64, link, info uint32, align, entsize uint64) {
		w32(name)
		w32(typ)
		w64(flags)
		w64(0) // sh_addr
		w64(off)
		w64(size)
		w32(link)
		w32(info)
		w64(align)
		w64(entsize)
	}
	const (
		shtProgbits = 1
		shtSymtab   = 2
		shtStrtab   = 3
		shfAlloc    = 0x2
		shfExec     = 0x4
	)
	shdr(0, 0, 0, 0, 0, 0, 0, 0, 0)
	shdr(nText, shtProgbits, shfAlloc|shfExec, uint64(offText), uint64(len(text)), 0, 0, 16, 0)
	shdr(nRodata, shtProgbits, shfAlloc, uint64(offRodata), uint64(len(rodata)), 0, 0, 8, 0)
	// sh_info of .symtab is the index of the first non-local symbol.
	shdr(nSymtab, shtSymtab, 0, uint64(offSymtab), uint64(symtab.Len()), secStrtab, 1, 8, symSize)
	shdr(nStrtab, shtStrtab, 0, uint64(offStrtab), uint64(len(strtab)), 0, 0, 1, 0)
	shdr(nShstrtab, shtStrtab, 0, uint64(offShstrtab), uint64(len(shstrtab)), 0, 0, 1, 0)

	return out.Bytes(), nil
}
