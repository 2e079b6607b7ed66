// Package sse 增量解析 OpenAI 兼容网关返回的 Server-Sent-Events 流，拼出完整回答文本。
package sse

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"strings"
)

const (
	dataPrefix   = "data: "
	doneSentinel = "[DONE]"
)

type deltaChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

// Parser 按字节增量接收 SSE 数据。零值可直接使用，不能并发调用。
type Parser struct {
	buf  []byte
	text strings.Builder
	done bool
}

// Feed 追加一段字节并解析其中所有完整的行。
func (p *Parser) Feed(chunk []byte) {
	if p.done {
		return
	}
	p.buf = append(p.buf, chunk...)
	p.drain()
}

// Finish 在流结束后调用：对缓冲区中剩余的内容逐行做容错解析，返回完整文本。
func (p *Parser) Finish() string {
	if !p.done && len(p.buf) > 0 {
		for _, raw := range bytes.Split(p.buf, []byte{'\n'}) {
			payload, ok := dataPayload(raw)
			if !ok || len(payload) == 0 {
				continue
			}
			if string(payload) == doneSentinel {
				p.done = true
				break
			}
			_ = p.appendDelta(payload)
		}
	}
	p.buf = nil
	return p.text.String()
}

// Text 返回目前为止拼接出的文本。
func (p *Parser) Text() string {
	return p.text.String()
}

// Done 表示是否已经读到 [DONE]。
func (p *Parser) Done() bool {
	return p.done
}

func (p *Parser) drain() {
	for !p.done {
		nl := bytes.IndexByte(p.buf, '\n')
		if nl < 0 {
			return
		}
		payload, ok := dataPayload(p.buf[:nl])
		if ok && len(payload) > 0 {
			if string(payload) == doneSentinel {
				p.done = true
				p.buf = p.buf[nl+1:]
				return
			}
			if err := p.appendDelta(payload); err != nil {
				// JSON 不完整：整行留在缓冲区头部，等更多字节到达再试
				return
			}
		}
		p.buf = p.buf[nl+1:]
	}
}

func (p *Parser) appendDelta(payload []byte) error {
	var chunk deltaChunk
	if err := json.Unmarshal(payload, &chunk); err != nil {
		return err
	}
	if len(chunk.Choices) > 0 {
		p.text.WriteString(chunk.Choices[0].Delta.Content)
	}
	return nil
}

// dataPayload 去掉行尾的 \r，识别 "data: " 前缀，返回去掉首尾空白的负载。
func dataPayload(line []byte) ([]byte, bool) {
	line = bytes.TrimSuffix(line, []byte{'\r'})
	if !bytes.HasPrefix(line, []byte(dataPrefix)) {
		return nil, false
	}
	return bytes.TrimSpace(line[len(dataPrefix):]), true
}

// Accumulate 读完 r（或读到 [DONE]）并返回拼接出的完整文本。
// 读错误时仍返回已经解析出的部分文本。
func Accumulate(r io.Reader) (string, error) {
	var p Parser
	buf := make([]byte, 4096)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			p.Feed(buf[:n])
			if p.Done() {
				return p.Finish(), nil
			}
		}
		if err != nil {
			text := p.Finish()
			if errors.Is(err, io.EOF) {
				return text, nil
			}
			return text, err
		}
	}
}
