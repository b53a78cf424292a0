package exporter

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"time"

	"github.com/YKarmar/jobsync/internal/syncer"
	"github.com/YKarmar/jobsync/internal/types"
)

const timeLayout = "2006-01-02 15:04:05"

// CSV导出器
type CSVExporter struct {
	filename string
}

// 创建CSV导出器
func NewCSVExporter(filename string) *CSVExporter {
	return &CSVExporter{
		filename: filename,
	}
}

// 导出求职申请到CSV文件
func (ce *CSVExporter) ExportApplications(applications []*types.Application) error {
	file, err := os.Create(ce.filename)
	if err != nil {
		return fmt.Errorf("create CSV file: %w", err)
	}
	defer file.Close()

	if err := WriteApplications(file, applications); err != nil {
		return err
	}
	return file.Sync()
}

// WriteApplications 将申请记录写为CSV
func WriteApplications(w io.Writer, applications []*types.Application) error {
	writer := csv.NewWriter(w)

	headers := []string{
		"公司名称",
		"职位名称",
		"工作地点",
		"状态",
		"结束原因",
		"申请日期",
		"来源邮件",
		"更新时间",
	}
	if err := writer.Write(headers); err != nil {
		return fmt.Errorf("write CSV headers: %w", err)
	}

	for _, app := range applications {
		location := ""
		if app.Location != nil {
			location = *app.Location
		}
		reason := ""
		if app.CloseReason != nil {
			reason = string(*app.CloseReason)
		}
		record := []string{
			app.Company,
			app.RoleOrEmpty(),
			location,
			string(app.Status),
			reason,
			app.AppliedDate.Format("2006-01-02"),
			app.SourceEmailID,
			app.UpdatedAt.Format(timeLayout),
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("flush CSV: %w", err)
	}
	return nil
}

// StatusCount 某状态下的申请数量
type StatusCount struct {
	Status types.Status
	Count  int
}

// StatusDistribution 按状态顺序统计，结束状态再按原因细分
func StatusDistribution(applications []*types.Application) ([]StatusCount, map[types.CloseReason]int) {
	counts := make(map[types.Status]int)
	reasons := make(map[types.CloseReason]int)
	for _, app := range applications {
		counts[app.Status]++
		if app.Status == types.StatusClosed && app.CloseReason != nil {
			reasons[*app.CloseReason]++
		}
	}

	dist := make([]StatusCount, 0, len(counts))
	for status, n := range counts {
		dist = append(dist, StatusCount{Status: status, Count: n})
	}
	sort.Slice(dist, func(i, j int) bool {
		return dist[i].Status.Rank() < dist[j].Status.Rank()
	})
	return dist, reasons
}

var statusNames = map[types.Status]string{
	types.StatusApplied:      "已申请",
	types.StatusInterviewing: "面试中",
	types.StatusOffer:        "收到Offer",
	types.StatusClosed:       "已结束",
}

var reasonNames = map[types.CloseReason]string{
	types.CloseReasonRejected:  "被拒绝",
	types.CloseReasonWithdrawn: "撤回申请",
	types.CloseReasonGhosted:   "无回音",
	types.CloseReasonAccepted:  "已接受",
}

// Digest 输出一次同步的摘要
func Digest(w io.Writer, s *syncer.Summary) {
	fmt.Fprintf(w, "\n=== 同步摘要 (%s) ===\n", s.MailboxID)
	fmt.Fprintf(w, "运行ID: %s  耗时: %s\n", s.RunID, s.Duration().Round(time.Millisecond))
	fmt.Fprintf(w, "扫描邮件: %d\n", s.Scanned)
	fmt.Fprintf(w, "  新建申请: %d\n", s.Created)
	fmt.Fprintf(w, "  状态更新: %d\n", s.Updated)
	fmt.Fprintf(w, "  无需变更: %d\n", s.Unchanged)
	fmt.Fprintf(w, "  已处理过: %d\n", s.AlreadyProcessed)
	fmt.Fprintf(w, "  已跳过:   %d\n", s.Skipped)
	if s.Failed > 0 {
		fmt.Fprintf(w, "  处理失败: %d (下次同步重试)\n", s.Failed)
	}
}

// PrintStatistics 打印申请状态分布
func PrintStatistics(w io.Writer, applications []*types.Application) {
	if len(applications) == 0 {
		fmt.Fprintln(w, "没有跟踪中的求职申请")
		return
	}

	fmt.Fprintf(w, "\n=== 求职申请统计 ===\n")
	fmt.Fprintf(w, "共跟踪 %d 个申请\n\n", len(applications))

	dist, reasons := StatusDistribution(applications)
	fmt.Fprintln(w, "状态分布:")
	for _, sc := range dist {
		name := statusNames[sc.Status]
		if name == "" {
			name = string(sc.Status)
		}
		fmt.Fprintf(w, "  %s: %s\n", name, strconv.Itoa(sc.Count))
		if sc.Status != types.StatusClosed {
			continue
		}
		for _, reason := range []types.CloseReason{
			types.CloseReasonRejected, types.CloseReasonWithdrawn,
			types.CloseReasonGhosted, types.CloseReasonAccepted,
		} {
			if n := reasons[reason]; n > 0 {
				fmt.Fprintf(w, "    %s: %d\n", reasonNames[reason], n)
			}
		}
	}

	companies := make(map[string]bool)
	for _, app := range applications {
		companies[app.Company] = true
	}
	fmt.Fprintf(w, "\n涉及公司数量: %d 家\n", len(companies))
}
