package kol

import (
	"fmt"
	"unicode"
)

// FilterChinese removes scalar fields whose value carries no Chinese text,
// recursing into objects and arrays. Containers left empty are removed too.
func FilterChinese(profile map[string]any) {
	for k, v := range profile {
		if keep, nv := filterValue(v); keep {
			profile[k] = nv
		} else {
			delete(profile, k)
		}
	}
}

func filterValue(v any) (bool, any) {
	switch t := v.(type) {
	case map[string]any:
		FilterChinese(t)
		return len(t) > 0, t
	case []any:
		out := t[:0]
		for _, e := range t {
			if keep, ne := filterValue(e); keep {
				out = append(out, ne)
			}
		}
		return len(out) > 0, out
	case string:
		return hasHan(t), t
	case nil:
		return false, nil
	default:
		return hasHan(fmt.Sprint(t)), t
	}
}

func hasHan(s string) bool {
	for _, r := range s {
		if unicode.Is(unicode.Han, r) {
			return true
		}
	}
	return false
}

// Enrich adds category context and business attributes used by the letter
// prompt. Existing verification and description fields are kept.
func Enrich(profile map[string]any, category string) {
	setDefault(profile, "verified_reason", category+"领域KOL")
	profile["business_cred"] = profile["verified_reason"]
	setDefault(profile, "description", fmt.Sprintf("专注于%s领域的电商达人", category))
	setDefault(profile, "followers_count", "10000+")

	profile["category"] = category
	profile["industry_background"] = category + "领域资深从业者"
	profile["business_value"] = map[string]any{
		"fans_quality":      "粉丝真实度高，互动活跃",
		"conversion_rate":   "带货转化能力强",
		"content_quality":   "内容专业性强，产出稳定",
		"cooperation_cases": "有多个成功品牌合作案例",
	}
	profile["market_reputation"] = "行业口碑良好，深受粉丝信赖"
	profile["cooperation_preference"] = "倾向于长期稳定的品牌合作"
}

func setDefault(m map[string]any, key string, v any) {
	if _, ok := m[key]; !ok {
		m[key] = v
	}
}

// DefaultLetter is the response used when discovery fails.
func DefaultLetter(category string) Letter {
	return Letter{
		Summary: fmt.Sprintf("这是一位在%[1]s领域具有重要影响力的电商KOL。作为%[1]s资深从业者，"+
			"在内容创作、粉丝运营和商业变现方面都有出色表现。其专业性和商业价值得到业内广泛认可。", category),
		Facts: []string{
			fmt.Sprintf("深耕%s领域多年，积累了丰富的行业资源和经验", category),
			"拥有高质量粉丝群体，粉丝互动率和转化率突出",
			"内容专业性强，产出稳定，深受用户信任",
			"具有丰富的品牌合作经验，商业信誉良好",
		},
		Interest: []string{
			fmt.Sprintf("%s行业趋势研究与分享", category),
			"新品牌孵化与市场拓展合作",
			"内容营销与品牌价值共创",
			"私域流量运营与变现优化",
		},
		Letter: []string{fmt.Sprintf(`尊敬的老师：

我是XX品牌的商务负责人。通过对您在%[1]s领域的深入了解，我们被您专业的行业见解、稳定的内容输出以及出色的粉丝运营所打动。

我们是一家专注于%[1]s领域的新锐品牌，产品已获得市场认可和良好口碑。我们希望能与您建立长期的战略合作关系。

合作方案：
1. 提供有竞争力的商务条件
2. 提供专属定制产品方案
3. 开放品牌资源共享
4. 支持创意内容打造

期待能与您进行深入交流，共同探讨更多合作可能。

顺祝商祺！

XX品牌商务团队`, category)},
	}
}
