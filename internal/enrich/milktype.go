package enrich

// KnownMilkTypes 规则引擎认可的奶源类型
// 植物基类型（almond/oat/soy）不在此列，会触发 MILK_TYPE_UNKNOWN 告警
var KnownMilkTypes = map[string]bool{
	"cow":     true,
	"buffalo": true,
	"mixed":   true,
	"camel":   true,
	"goat":    true,
}

// ClassifyMilkType 基于 fat/snf 区间的奶源类型规则分类
// 规则按顺序匹配：先排除植物基，再判定动物奶源
func ClassifyMilkType(fat, snf *float64) string {
	if fat == nil || snf == nil {
		return "unknown"
	}
	f, s := *fat, *snf

	// 植物基
	if f < 1.5 && s < 6.5 {
		return "almond"
	}
	if f < 2.0 && s < 7.5 {
		return "oat"
	}
	if f >= 1.0 && f <= 2.5 && s >= 7.0 && s <= 9.0 {
		return "soy"
	}

	// 动物奶源
	if f > 6.0 && s > 9.5 {
		return "buffalo"
	}
	if f > 2.0 && f < 3.8 && s >= 8.5 && s <= 9.5 {
		return "camel"
	}
	if f < 4.0 && s < 8.6 {
		return "goat"
	}
	if f >= 3.2 && f <= 5.8 && s >= 8.0 && s <= 9.8 {
		return "cow"
	}

	return "unknown"
}
