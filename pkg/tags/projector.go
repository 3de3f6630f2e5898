// Package tags 将网易云歌曲详情投影为与格式无关的抽象标签映射。
//
// 同一份详情在两种标签结构下结果不同：ID3v2（FrameBased）的多值字段需要拼接，
// Vorbis Comment（CommentBased）保留多值。
package tags

import (
	"fmt"
	"time"

	"github.com/tidwall/gjson"

	"github.com/yleoer/music-tagger/pkg/converter"
	"github.com/yleoer/music-tagger/pkg/metadata"
)

// FieldError 记录单个标签处理失败，不影响其他标签
type FieldError struct {
	Tag string
	Err error
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("tag %s: %v", e.Tag, e.Err)
}

func (e *FieldError) Unwrap() error { return e.Err }

// Result 是一次投影的结果
type Result struct {
	Tags   Tags
	Issues []*FieldError
}

// Projector 负责生成抽象标签映射
type Projector struct {
	loc  *time.Location
	conv converter.TextConverter
}

// Option 配置 Projector
type Option func(*Projector)

// WithLocation 指定发行日期使用的时区，默认 time.Local
func WithLocation(loc *time.Location) Option {
	return func(p *Projector) { p.loc = loc }
}

// WithConverter 对所有输出文本做繁简转换
func WithConverter(c converter.TextConverter) Option {
	return func(p *Projector) { p.conv = c }
}

// NewProjector 创建 Projector
func NewProjector(opts ...Option) *Projector {
	p := &Projector{loc: time.Local, conv: converter.Identity{}}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// projection 保存一次投影的中间状态
type projection struct {
	schema Schema
	detail gjson.Result
	tags   Tags
	issues []*FieldError
}

func (pr *projection) fail(tag string, err error) {
	pr.issues = append(pr.issues, &FieldError{Tag: tag, Err: err})
}

// Project 生成一份歌曲详情在 schema 下的抽象标签映射
func (p *Projector) Project(detail gjson.Result, schema Schema) Result {
	pr := &projection{schema: schema, detail: detail, tags: Tags{}}
	env := Env{Location: p.loc}

	for _, rule := range Rules {
		pr.run(rule.Tag, func() error {
			v, ok := metadata.Lookup(detail, rule.Path)
			if !ok {
				return nil
			}
			value, err := rule.For(schema)(env, v)
			if err != nil {
				return err
			}
			pr.tags.set(rule.Tag, value)
			return nil
		})
	}

	for _, step := range specialCases(schema) {
		pr.run(step.tag, func() error { return step.apply(pr) })
	}

	return Result{Tags: p.convert(pr.tags), Issues: pr.issues}
}

// run 隔离单个步骤：返回的错误和 panic 都只记录为该标签的问题
func (pr *projection) run(tag string, fn func() error) {
	defer func() {
		if r := recover(); r != nil {
			pr.fail(tag, fmt.Errorf("panic: %v", r))
		}
	}()
	if err := fn(); err != nil {
		pr.fail(tag, err)
	}
}

func (p *Projector) convert(in Tags) Tags {
	if _, ok := p.conv.(converter.Identity); ok {
		return in
	}
	out := make(Tags, len(in))
	for name, v := range in {
		switch v.Kind() {
		case KindScalar:
			out[name] = Scalar(p.conv.TradToSim(v.First()))
		case KindList:
			out[name] = List(converter.ConvertAll(p.conv, v.Strings())...)
		default:
			out[name] = v
		}
	}
	return out
}
