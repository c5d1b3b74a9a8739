package h02

import "github.com/taoyao-code/h02-server/internal/coremodel"

// Subtype 文本帧子类型（第三个字段）
type Subtype uint8

const (
	SubtypeRegular Subtype = iota
	SubtypeV1
	SubtypeV4
	SubtypeNBR
	SubtypeLink
	SubtypeV3
	SubtypeVP1
	SubtypeHeartbeat
	// SubtypeBinary 仅用于标记二进制帧的解码结果
	SubtypeBinary

	subtypeCount
)

var subtypeTokens = map[string]Subtype{
	"V1":   SubtypeV1,
	"V4":   SubtypeV4,
	"NBR":  SubtypeNBR,
	"LINK": SubtypeLink,
	"V3":   SubtypeV3,
	"VP1":  SubtypeVP1,
	"HTBT": SubtypeHeartbeat,
}

// ParseSubtype 未识别的令牌按常规位置报文处理
func ParseSubtype(token string) Subtype {
	if st, ok := subtypeTokens[token]; ok {
		return st
	}
	return SubtypeRegular
}

func (s Subtype) String() string {
	switch s {
	case SubtypeRegular:
		return "regular"
	case SubtypeV1:
		return "V1"
	case SubtypeV4:
		return "V4"
	case SubtypeNBR:
		return "NBR"
	case SubtypeLink:
		return "LINK"
	case SubtypeV3:
		return "V3"
	case SubtypeVP1:
		return "VP1"
	case SubtypeHeartbeat:
		return "HTBT"
	case SubtypeBinary:
		return "binary"
	default:
		return "unknown"
	}
}

type textDecodeFunc func(s *sentence, pos *coremodel.Position) error

// textDecoders 每个文本子类型一个解码函数，按枚举值下标
var textDecoders = [subtypeCount]textDecodeFunc{
	SubtypeRegular:   decodeRegular,
	SubtypeV1:        decodeV1,
	SubtypeV4:        decodeV4,
	SubtypeNBR:       decodeNBR,
	SubtypeLink:      decodeLink,
	SubtypeV3:        decodeV3,
	SubtypeVP1:       decodeVP1,
	SubtypeHeartbeat: decodeHeartbeat,
	SubtypeBinary:    rejectBinary,
}

func rejectBinary(*sentence, *coremodel.Position) error { return ErrUnknownProtocol }
