// Package codec 提供二进制报文使用的 BCD 与位运算原语。
// 越界偏移属于调用方编程错误（直接 panic），解码器需在调用前自行做长度校验。
package codec

import "strings"

// BcdToInt 单字节 BCD 转整数，高低半字节各一位十进制数
func BcdToInt(b byte) int {
	return int(b>>4)*10 + int(b&0x0F)
}

// IntToBcd 整数（0..99）转单字节 BCD
func IntToBcd(v int) byte {
	return byte((v/10)<<4&0xF0) | byte(v%10&0x0F)
}

// ReadBcdInteger 读取 length 个 BCD 字节，按十进制位依次拼接（每字节两位）
func ReadBcdInteger(b []byte, offset, length int) int {
	result := 0
	for i := 0; i < length; i++ {
		result = result*100 + BcdToInt(b[offset+i])
	}
	return result
}

// WriteBcdInteger 将 v 以 length 个 BCD 字节写入 b[offset:]（高位在前，超出部分截断）
func WriteBcdInteger(b []byte, offset, length, v int) {
	for i := length - 1; i >= 0; i-- {
		b[offset+i] = IntToBcd(v % 100)
		v /= 100
	}
}

// ReadBcdDigits 从第 nibble 个半字节（0 起，高半字节在前）开始读取 digits 位十进制数。
// 坐标度数（3 位）与速度（3 位）不是整字节对齐，需要按半字节读取。
func ReadBcdDigits(b []byte, nibble, digits int) int {
	result := 0
	for i := nibble; i < nibble+digits; i++ {
		v := b[i/2]
		if i%2 == 0 {
			v >>= 4
		}
		result = result*10 + int(v&0x0F)
	}
	return result
}

// ReadBcdHexString 读取 length 字节为十六进制数字串，0xF 半字节视为填充并跳过
func ReadBcdHexString(b []byte, offset, length int) string {
	var sb strings.Builder
	sb.Grow(length * 2)
	for i := 0; i < length; i++ {
		hi := b[offset+i] >> 4
		lo := b[offset+i] & 0x0F
		if hi != 0x0F {
			sb.WriteByte(hexDigits[hi])
		}
		if lo != 0x0F {
			sb.WriteByte(hexDigits[lo])
		}
	}
	return sb.String()
}

// WriteBcdHexString 将十六进制数字串写入 length 字节，奇数长度或不足部分以 0xF 填充
func WriteBcdHexString(b []byte, offset, length int, s string) {
	s = strings.ToUpper(s)
	for i := 0; i < length; i++ {
		hi, lo := byte(0x0F), byte(0x0F)
		if i*2 < len(s) {
			hi = hexNibble(s[i*2])
		}
		if i*2+1 < len(s) {
			lo = hexNibble(s[i*2+1])
		}
		b[offset+i] = hi<<4 | lo
	}
}

const hexDigits = "0123456789ABCDEF"

func hexNibble(c byte) byte {
	switch {
	case c >= '0' && c <= '9':
		return c - '0'
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10
	default:
		return 0x0F
	}
}
