package handler

import (
	"context"
	"errors"
	"io"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"talent-search-go/internal/extractor"
	"talent-search-go/internal/storage"
	"talent-search-go/internal/storage/models"
	"talent-search-go/internal/types"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"github.com/gofrs/uuid/v5"
	"gorm.io/gorm"
)

// 单次上传的简历文件大小上限
const maxResumeFileSize = 20 * 1024 * 1024

// CandidateHandler 负责候选人录入和查询
type CandidateHandler struct {
	storage   *storage.Storage
	extractor *extractor.ResumeExtractor
	logger    *log.Logger
}

// NewCandidateHandler 创建CandidateHandler实例
func NewCandidateHandler(s *storage.Storage, ext *extractor.ResumeExtractor) *CandidateHandler {
	return &CandidateHandler{
		storage:   s,
		extractor: ext,
		logger:    log.New(os.Stdout, "[CandidateHandler] ", log.LstdFlags|log.Lshortfile),
	}
}

// candidateView 候选人响应体，技能列表已从JSON展开
type candidateView struct {
	CandidateID       string   `json:"candidate_id"`
	Name              string   `json:"name"`
	Email             string   `json:"email,omitempty"`
	Location          string   `json:"location,omitempty"`
	Availability      string   `json:"availability,omitempty"`
	VisaStatus        string   `json:"visa_status,omitempty"`
	YearsExperience   int      `json:"years_experience"`
	Skills            []string `json:"skills"`
	ExperienceSummary string   `json:"experience_summary,omitempty"`
	ResumeObjectKey   string   `json:"resume_object_key,omitempty"`
	Synced            bool     `json:"synced"`
}

func toCandidateView(c *models.Candidate) candidateView {
	skills, err := c.Skills()
	if err != nil {
		skills = nil
	}
	return candidateView{
		CandidateID:       c.CandidateID,
		Name:              c.Name,
		Email:             c.Email,
		Location:          c.Location,
		Availability:      c.Availability,
		VisaStatus:        c.VisaStatus,
		YearsExperience:   c.YearsExperience,
		Skills:            skills,
		ExperienceSummary: c.ExperienceSummary,
		ResumeObjectKey:   c.ResumeObjectKey,
		Synced:            c.SyncedAt != nil,
	}
}

// HandleUploadCandidate 接收简历文件，上传对象存储并提取结构化字段入库。
// 新录入的候选人 synced_at 为空，等待下一次索引同步。
// POST /api/v1/candidates (multipart/form-data: file 必填，name/email/location 选填覆盖提取结果)
func (h *CandidateHandler) HandleUploadCandidate(ctx context.Context, c *app.RequestContext) {
	if h.storage == nil || h.storage.MinIO == nil || h.storage.MySQL == nil {
		writeError(c, types.NewExternalServiceError("storage", errors.New("存储组件未初始化")))
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		writeError(c, types.NewValidationError("missing_file", "请求缺少简历文件 (form字段: file)"))
		return
	}
	if fileHeader.Size == 0 {
		writeError(c, types.NewValidationError("empty_file", "简历文件内容为空"))
		return
	}
	if fileHeader.Size > maxResumeFileSize {
		writeError(c, types.NewValidationError("file_too_large", "简历文件超过大小上限"))
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		h.logger.Printf("打开上传文件失败: %v", err)
		writeError(c, types.NewValidationError("unreadable_file", "无法读取上传文件"))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		h.logger.Printf("读取上传文件失败: %v", err)
		writeError(c, types.NewValidationError("unreadable_file", "无法读取上传文件"))
		return
	}

	candidateUUID, err := uuid.NewV7()
	if err != nil {
		writeError(c, err)
		return
	}
	candidateID := candidateUUID.String()

	fileExt := strings.ToLower(filepath.Ext(fileHeader.Filename))
	objectKey, md5Hex, err := h.storage.MinIO.UploadResumeBytes(ctx, candidateID, fileExt, data)
	if err != nil {
		h.logger.Printf("上传简历到对象存储失败 (candidate=%s): %v", candidateID, err)
		writeError(c, types.NewExternalServiceError("object-storage", err))
		return
	}

	format := strings.TrimPrefix(fileExt, ".")
	extracted, err := h.extractor.Extract(ctx, data, format)
	if err != nil {
		h.logger.Printf("简历提取失败 (candidate=%s): %v", candidateID, err)
		writeError(c, err)
		return
	}

	candidate := &models.Candidate{
		CandidateID:       candidateID,
		Name:              firstNonEmpty(string(c.FormValue("name")), extracted.Name),
		Email:             firstNonEmpty(string(c.FormValue("email")), extracted.Email),
		Location:          firstNonEmpty(string(c.FormValue("location")), extracted.Location),
		ExperienceSummary: extracted.ExperienceSummary,
		ResumeObjectKey:   objectKey,
		TextMD5:           md5Hex,
	}
	if err := candidate.SetSkills(extracted.Skills); err != nil {
		writeError(c, err)
		return
	}

	if err := h.storage.MySQL.UpsertCandidate(ctx, candidate); err != nil {
		h.logger.Printf("候选人入库失败 (candidate=%s): %v", candidateID, err)
		writeError(c, types.NewExternalServiceError("mysql", err))
		return
	}

	h.logger.Printf("候选人录入完成: candidate=%s object=%s skills=%d", candidateID, objectKey, len(extracted.Skills))
	c.JSON(consts.StatusCreated, map[string]interface{}{
		"candidate_id":       candidateID,
		"resume_object_key":  objectKey,
		"skills":             extracted.Skills,
		"experience_summary": extracted.ExperienceSummary,
	})
}

// HandleGetCandidate 按ID查询候选人。
// GET /api/v1/candidates/:id
func (h *CandidateHandler) HandleGetCandidate(ctx context.Context, c *app.RequestContext) {
	candidateID := c.Param("id")
	if candidateID == "" {
		writeError(c, types.NewValidationError("missing_candidate_id", "缺少候选人ID"))
		return
	}

	candidate, err := h.storage.MySQL.GetCandidateByID(ctx, candidateID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(consts.StatusNotFound, map[string]interface{}{
				"error": map[string]interface{}{
					"code":    "candidate_not_found",
					"message": "候选人不存在",
				},
			})
			return
		}
		writeError(c, types.NewExternalServiceError("mysql", err))
		return
	}

	c.JSON(consts.StatusOK, toCandidateView(candidate))
}

// HandleListCandidates 分页列出候选人，按录入时间倒序。
// GET /api/v1/candidates?offset=0&limit=20
func (h *CandidateHandler) HandleListCandidates(ctx context.Context, c *app.RequestContext) {
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	candidates, err := h.storage.MySQL.ListCandidates(ctx, offset, limit)
	if err != nil {
		writeError(c, types.NewExternalServiceError("mysql", err))
		return
	}
	total, err := h.storage.MySQL.CountCandidates(ctx)
	if err != nil {
		writeError(c, types.NewExternalServiceError("mysql", err))
		return
	}

	views := make([]candidateView, 0, len(candidates))
	for i := range candidates {
		views = append(views, toCandidateView(&candidates[i]))
	}
	c.JSON(consts.StatusOK, map[string]interface{}{
		"candidates": views,
		"total":      total,
		"offset":     offset,
		"limit":      limit,
	})
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
