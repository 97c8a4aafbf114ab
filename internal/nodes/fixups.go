package nodes

import "fmt"

// FixupKind identifies what the loader must resolve for a signature.
type FixupKind byte

const (
	FixupThisObjDictionaryLookup FixupKind = 0x07
	FixupTypeDictionaryLookup    FixupKind = 0x08
	FixupMethodDictionaryLookup  FixupKind = 0x09
	FixupTypeHandle              FixupKind = 0x10
	FixupMethodHandle            FixupKind = 0x11
	FixupFieldHandle             FixupKind = 0x12
	FixupMethodEntry             FixupKind = 0x13
	FixupMethodEntryDefToken     FixupKind = 0x14
	FixupMethodEntryRefToken     FixupKind = 0x15
	FixupHelper                  FixupKind = 0x1A
	FixupNewObject               FixupKind = 0x1C
	FixupNewArray                FixupKind = 0x1D
	FixupFieldAddress            FixupKind = 0x20
	FixupDelegateCtor            FixupKind = 0x2C

	// FixupModuleOverride is or-ed into the kind byte when a module index
	// follows.
	FixupModuleOverride FixupKind = 0x80
)

var fixupNames = map[FixupKind]string{
	FixupThisObjDictionaryLookup: "ThisObjDictionaryLookup",
	FixupTypeDictionaryLookup:    "TypeDictionaryLookup",
	FixupMethodDictionaryLookup:  "MethodDictionaryLookup",
	FixupTypeHandle:              "TypeHandle",
	FixupMethodHandle:            "MethodHandle",
	FixupFieldHandle:             "FieldHandle",
	FixupMethodEntry:             "MethodEntry",
	FixupMethodEntryDefToken:     "MethodEntry_DefToken",
	FixupMethodEntryRefToken:     "MethodEntry_RefToken",
	FixupHelper:                  "Helper",
	FixupNewObject:               "NewObject",
	FixupNewArray:                "NewArray",
	FixupFieldAddress:            "FieldAddress",
	FixupDelegateCtor:            "DelegateCtor",
}

func (k FixupKind) String() string {
	if name, ok := fixupNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Fixup(%#02x)", byte(k))
}

// Method signature flags.
const (
	methodFlagUnboxingStub        = 0x01
	methodFlagInstantiatingStub   = 0x02
	methodFlagMethodInstantiation = 0x04
	methodFlagMemberRefToken      = 0x10
	methodFlagConstrained         = 0x20
	methodFlagOwnerType           = 0x40
)

const fieldFlagOwnerType = 0x40

// RuntimeLookupKind says where shared code finds its generic dictionary.
type RuntimeLookupKind int

const (
	LookupThisObj RuntimeLookupKind = iota
	LookupClassParam
	LookupMethodParam
)

func (k RuntimeLookupKind) String() string {
	switch k {
	case LookupThisObj:
		return "ThisObj"
	case LookupClassParam:
		return "ClassParam"
	case LookupMethodParam:
		return "MethodParam"
	default:
		return fmt.Sprintf("RuntimeLookupKind(%d)", int(k))
	}
}

// ReadyToRunHelper identifies a runtime helper an import cell binds to.
type ReadyToRunHelper uint32

const (
	HelperPInvokeBegin        ReadyToRunHelper = 0x42
	HelperPInvokeEnd          ReadyToRunHelper = 0x43
	HelperLogMethodEnter      ReadyToRunHelper = 0x45
	HelperDelayLoadMethodCall ReadyToRunHelper = 0x108
	HelperDelayLoadHelper     ReadyToRunHelper = 0x109
	HelperDelayLoadHelperObj  ReadyToRunHelper = 0x10A
)

func (h ReadyToRunHelper) String() string {
	switch h {
	case HelperPInvokeBegin:
		return "PInvokeBegin"
	case HelperPInvokeEnd:
		return "PInvokeEnd"
	case HelperLogMethodEnter:
		return "LogMethodEnter"
	case HelperDelayLoadMethodCall:
		return "DelayLoad_MethodCall"
	case HelperDelayLoadHelper:
		return "DelayLoad_Helper"
	case HelperDelayLoadHelperObj:
		return "DelayLoad_Helper_Obj"
	default:
		return fmt.Sprintf("Helper(%#x)", uint32(h))
	}
}

// Class codes partition object nodes for the comparer.
const (
	classMethodCode            = 315213488
	classImportSection         = 1024534109
	classDelayLoadHelperImport = 667823013
	classDelayLoadMethodImport = 192837465
	classMethodEntrySignature  = 150063499
	classTypeFixupSignature    = 305610
	classFieldFixupSignature   = 1009851237
	classHelperSignature       = 208107954
	classDelegateCtorSignature = 99885741
	classGenericLookup         = 258608008
	classNewArrayFixup         = 815543321
)
