package paynow

import (
	"fmt"
	"strconv"
	"strings"
)

// EMV 二维码数据对象 id
const (
	tagPayloadFormat   = "00"
	tagInitiation      = "01"
	tagMerchantAccount = "26"
	tagCategoryCode    = "52"
	tagCurrency        = "53"
	tagAmount          = "54"
	tagCountry         = "58"
	tagMerchantName    = "59"
	tagMerchantCity    = "60"
	tagAdditionalData  = "62"
	tagCRC             = "63"
)

// TLV 一个数据对象；26 和 62 的值本身也是 TLV 序列
type TLV struct {
	ID       string
	Value    string
	Children []TLV
}

func formatTLV(id, value string) string {
	return fmt.Sprintf("%s%02d%s", id, len(value), value)
}

// CRC16 CRC-16/CCITT-FALSE（多项式 0x1021，初值 0xFFFF）
func CRC16(data string) uint16 {
	crc := uint16(0xFFFF)
	for i := 0; i < len(data); i++ {
		crc ^= uint16(data[i]) << 8
		for j := 0; j < 8; j++ {
			if crc&0x8000 != 0 {
				crc = crc<<1 ^ 0x1021
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}

func checksum(payloadWithMarker string) string {
	return fmt.Sprintf("%04X", CRC16(payloadWithMarker))
}

func parseSeq(s string, nested bool) ([]TLV, error) {
	var out []TLV
	for cursor := 0; cursor < len(s); {
		if cursor+4 > len(s) {
			return nil, fmt.Errorf("truncated tlv header at %d", cursor)
		}
		id := s[cursor : cursor+2]
		n, err := strconv.Atoi(s[cursor+2 : cursor+4])
		if err != nil {
			return nil, fmt.Errorf("bad tlv length for %s: %w", id, err)
		}
		end := cursor + 4 + n
		if end > len(s) {
			return nil, fmt.Errorf("tlv %s overruns payload", id)
		}
		entry := TLV{ID: id, Value: s[cursor+4 : end]}
		if nested && (id == tagMerchantAccount || id == tagAdditionalData) {
			if entry.Children, err = parseSeq(entry.Value, false); err != nil {
				return nil, fmt.Errorf("tlv %s: %w", id, err)
			}
		}
		out = append(out, entry)
		cursor = end
		if nested && id == tagCRC {
			break
		}
	}
	return out, nil
}

// ParseTLV 解析整段 payload 并校验末尾 CRC
func ParseTLV(payload string) ([]TLV, error) {
	entries, err := parseSeq(payload, true)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 || entries[len(entries)-1].ID != tagCRC {
		return nil, fmt.Errorf("missing crc")
	}
	body := payload[:len(payload)-4]
	if got, want := entries[len(entries)-1].Value, checksum(body); !strings.EqualFold(got, want) {
		return nil, fmt.Errorf("crc mismatch: got %s want %s", got, want)
	}
	return entries, nil
}

// Describe 逐行输出 TLV 结构，调试日志用
func Describe(entries []TLV) string {
	var b strings.Builder
	var walk func([]TLV, int)
	walk = func(list []TLV, depth int) {
		for _, e := range list {
			fmt.Fprintf(&b, "%s%s (%02d): %s\n", strings.Repeat("  ", depth), e.ID, len(e.Value), e.Value)
			walk(e.Children, depth+1)
		}
	}
	walk(entries, 0)
	return b.String()
}
