package cv

import (
	"regexp"
	"strings"
)

// IsComplete 判断文档是否满足保存的最低要求：五个个人字段非空，且教育、工作、技能各至少一条。
func IsComplete(d Document) bool {
	p := d.Personal
	for _, v := range []string{p.Name, p.Title, p.Email, p.Phone, p.Summary} {
		if v == "" {
			return false
		}
	}
	return len(d.Education) > 0 && len(d.Experience) > 0 && len(d.Skills) > 0
}

var whitespaceRun = regexp.MustCompile(`\s+`)

// DownloadFilename 生成导出 PDF 的文件名：每段空白（包括首尾）替换为单个下划线，后缀 _CV.pdf。
// 空名或全空白的名字得到 CV.pdf。路径分隔符一并替换，避免文件落到下载目录之外。
func DownloadFilename(name string) string {
	if strings.TrimSpace(name) == "" {
		return "CV.pdf"
	}
	name = strings.NewReplacer("/", "_", `\`, "_").Replace(name)
	return whitespaceRun.ReplaceAllString(name, "_") + "_CV.pdf"
}

// DisplayEndDate 返回界面/PDF 中展示的结束日期。仍在读/在职时显示 Present，存储的 endDate 保持不变。
func DisplayEndDate(endDate string, current bool) string {
	if current {
		return "Present"
	}
	return endDate
}
