package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gorm.io/gorm"

	"github.com/OraMead/notehub-back/internal/config"
	"github.com/OraMead/notehub-back/internal/db"
	"github.com/OraMead/notehub-back/internal/service"
)

type (
	RegisterReq struct {
		FirstName string `json:"fname" validate:"required"`
		LastName  string `json:"lname"`
		Email     string `json:"email" validate:"required,email"`
		Password  string `json:"password" validate:"required"`
		Role      string `json:"role"`
	}

	LoginReq struct {
		Email    string `json:"email" validate:"required,email"`
		Password string `json:"password" validate:"required"`
	}

	TokenResp struct {
		Token string `json:"token"`
	}

	NoteCreateReq struct {
		Title       string `json:"title"`
		SubjectID   uint64 `json:"subject_id"`
		SubjectName string `json:"subject_name"`
		Filename    string `json:"filename"`
		Content     string `json:"content"`
	}

	NoteEditReq struct {
		Content string `json:"content"`
	}

	NoteCopyReq struct {
		Title      string `json:"title"`
		CopyTags   bool   `json:"copy_tags"`
		CopyShared bool   `json:"copy_shared"`
	}

	ShareReq struct {
		UserID     uint64 `json:"user_id" validate:"required"`
		Permission string `json:"permission" validate:"required"`
	}

	ToggleTagReq struct {
		TagID uint64 `json:"tag_id" validate:"required"`
		On    bool   `json:"on"`
	}

	TagReq struct {
		Name string `json:"name" validate:"required"`
	}

	NoteIDResp struct {
		ID uint64 `json:"id"`
	}

	EditResp struct {
		UpdatedAt time.Time `json:"updated_at"`
	}

	TagResp struct {
		ID   uint64 `json:"id"`
		Name string `json:"name"`
	}

	ShareResp struct {
		UserID     uint64 `json:"user_id"`
		Email      string `json:"email"`
		Permission string `json:"permission"`
	}

	NoteSummaryResp struct {
		ID        uint64      `json:"id"`
		Title     string      `json:"title"`
		Subject   string      `json:"subject"`
		Preview   string      `json:"preview"`
		UpdatedAt time.Time   `json:"updated_at"`
		OwnerID   uint64      `json:"owner_id"`
		Tags      []TagResp   `json:"tags"`
		Shares    []ShareResp `json:"shares"`
	}

	NoteDetailResp struct {
		ID        uint64      `json:"id"`
		Title     string      `json:"title"`
		Subject   string      `json:"subject"`
		OwnerID   uint64      `json:"owner_id"`
		UpdatedAt time.Time   `json:"updated_at"`
		Content   string      `json:"content"`
		Tags      []TagResp   `json:"tags"`
		Shares    []ShareResp `json:"shares"`
	}

	CustomValidator struct {
		validator *validator.Validate
	}

	HTTPServer struct {
		db     *gorm.DB
		svc    *service.Service
		logger *zap.SugaredLogger
	}
)

func NewHTTPServer(lc fx.Lifecycle, cfg *config.Config, gormDB *gorm.DB, svc *service.Service, logger *zap.SugaredLogger) *HTTPServer {
	e := echo.New()

	instance := HTTPServer{
		db:     gormDB,
		svc:    svc,
		logger: logger,
	}

	e.POST("/auth/register", instance.Register)
	e.POST("/auth/login", instance.Login)
	e.DELETE("/auth/account", instance.DeleteAccount)

	noteG := e.Group("/note")
	noteG.GET("", instance.NoteList)
	noteG.GET("/shared", instance.NoteListShared)
	noteG.POST("", instance.NoteCreate)
	noteG.GET("/:id", instance.NoteGet)
	noteG.PUT("/:id", instance.NoteEdit)
	noteG.POST("/:id/copy", instance.NoteCopy)
	noteG.DELETE("/:id", instance.NoteDelete)
	noteG.POST("/:id/share", instance.NoteShare)
	noteG.PATCH("/:id/share", instance.NoteShareUpdate)
	noteG.DELETE("/:id/share/:user_id", instance.NoteUnshare)
	noteG.POST("/:id/tag", instance.NoteToggleTag)

	tagG := e.Group("/tag")
	tagG.POST("", instance.TagResolve)

	e.GET("/ping", func(c echo.Context) error { return c.String(http.StatusOK, "pong") })

	e.Use(middleware.CORS())
	e.Use(middleware.BodyDumpWithConfig(middleware.BodyDumpConfig{
		Handler: func(c echo.Context, reqBody, resBody []byte) {
			logger.Infow("request",
				"method", c.Request().Method,
				"path", c.Request().URL.Path,
				"status", c.Response().Status,
				"body", string(censorBody(reqBody)),
			)
		},
	}))
	e.Use(middleware.Recover())

	e.Use(instance.AuthMiddleware)

	e.Validator = &CustomValidator{validator: validator.New()}

	echo.NotFoundHandler = func(c echo.Context) error {
		return c.NoContent(http.StatusNotFound)
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				listen := cfg.Host + ":" + cfg.Port
				if err := e.Start(listen); err != nil && err != http.ErrServerClosed {
					e.Logger.Fatal("shutting down the server")
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("Stopping HTTP server.")
			return e.Shutdown(ctx)
		},
	})

	return &instance
}

func (s *HTTPServer) Register(c echo.Context) error {
	req := RegisterReq{}
	if err := BindAndValidate(c, &req); err != nil {
		return err
	}

	token, err := s.svc.Register(service.RegisterReq{
		FirstName: titleCase(strings.TrimSpace(req.FirstName)),
		LastName:  titleCase(strings.TrimSpace(req.LastName)),
		Email:     req.Email,
		Password:  req.Password,
		Role:      req.Role,
	})
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(http.StatusOK, &TokenResp{Token: token})
}

func (s *HTTPServer) Login(c echo.Context) error {
	req := LoginReq{}
	if err := BindAndValidate(c, &req); err != nil {
		return err
	}

	token, err := s.svc.Login(req.Email, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrLoginUserNotFound) || errors.Is(err, service.ErrLoginPasswordDoesNotMatch) {
			return c.NoContent(http.StatusUnauthorized)
		}
		return err
	}
	return c.JSON(http.StatusOK, &TokenResp{Token: token})
}

func (s *HTTPServer) DeleteAccount(c echo.Context) error {
	user, err := GetUserFromContext(c)
	if err != nil {
		return err
	}
	if err := s.svc.DeleteAccount(user.ID); err != nil {
		return mapServiceError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *HTTPServer) NoteList(c echo.Context) error {
	user, err := GetUserFromContext(c)
	if err != nil {
		return err
	}
	summaries, err := s.svc.ListOwned(user.ID)
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(http.StatusOK, toSummaryResps(summaries))
}

func (s *HTTPServer) NoteListShared(c echo.Context) error {
	user, err := GetUserFromContext(c)
	if err != nil {
		return err
	}
	summaries, err := s.svc.ListShared(user.ID)
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(http.StatusOK, toSummaryResps(summaries))
}

func (s *HTTPServer) NoteCreate(c echo.Context) error {
	user, err := GetUserFromContext(c)
	if err != nil {
		return err
	}
	req := NoteCreateReq{}
	if err := BindAndValidate(c, &req); err != nil {
		return err
	}

	id, err := s.svc.CreateNote(service.CreateNoteReq{
		OwnerID:     user.ID,
		SubjectID:   req.SubjectID,
		SubjectName: req.SubjectName,
		Title:       req.Title,
		Filename:    req.Filename,
		Content:     []byte(req.Content),
	})
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(http.StatusOK, &NoteIDResp{ID: id})
}

// NoteGet deliberately collapses authorization failures into 404 so a
// non-grantee cannot confirm a note exists.
func (s *HTTPServer) NoteGet(c echo.Context) error {
	id, err := GetAndParseParam(c, "id")
	if err != nil {
		return err
	}
	user, err := GetUserFromContext(c)
	if err != nil {
		return err
	}

	detail, err := s.svc.GetNote(user.ID, id)
	if err != nil {
		if service.IsNotAuthorized(err) || service.IsNotFound(err) {
			return c.NoContent(http.StatusNotFound)
		}
		return mapServiceError(c, err)
	}

	return c.JSON(http.StatusOK, &NoteDetailResp{
		ID:        detail.ID,
		Title:     detail.Title,
		Subject:   detail.Subject,
		OwnerID:   detail.OwnerID,
		UpdatedAt: detail.UpdatedAt,
		Content:   detail.Content,
		Tags:      toTagResps(detail.Tags),
		Shares:    toShareResps(detail.Shares),
	})
}

func (s *HTTPServer) NoteEdit(c echo.Context) error {
	id, err := GetAndParseParam(c, "id")
	if err != nil {
		return err
	}
	user, err := GetUserFromContext(c)
	if err != nil {
		return err
	}
	req := NoteEditReq{}
	if err := BindAndValidate(c, &req); err != nil {
		return err
	}

	updatedAt, err := s.svc.EditNote(user.ID, id, []byte(req.Content))
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(http.StatusOK, &EditResp{UpdatedAt: updatedAt})
}

func (s *HTTPServer) NoteCopy(c echo.Context) error {
	id, err := GetAndParseParam(c, "id")
	if err != nil {
		return err
	}
	user, err := GetUserFromContext(c)
	if err != nil {
		return err
	}
	req := NoteCopyReq{}
	if err := BindAndValidate(c, &req); err != nil {
		return err
	}

	newID, err := s.svc.CopyNote(service.CopyNoteReq{
		ActorID:    user.ID,
		SourceID:   id,
		Title:      req.Title,
		CopyTags:   req.CopyTags,
		CopyShared: req.CopyShared,
	})
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(http.StatusOK, &NoteIDResp{ID: newID})
}

func (s *HTTPServer) NoteDelete(c echo.Context) error {
	id, err := GetAndParseParam(c, "id")
	if err != nil {
		return err
	}
	user, err := GetUserFromContext(c)
	if err != nil {
		return err
	}
	if err := s.svc.DeleteNote(user.ID, id); err != nil {
		return mapServiceError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *HTTPServer) NoteShare(c echo.Context) error {
	id, err := GetAndParseParam(c, "id")
	if err != nil {
		return err
	}
	user, err := GetUserFromContext(c)
	if err != nil {
		return err
	}
	req := ShareReq{}
	if err := BindAndValidate(c, &req); err != nil {
		return err
	}
	permission, err := service.ParsePermission(req.Permission)
	if err != nil {
		return mapServiceError(c, err)
	}
	if err := s.svc.ShareNote(user.ID, id, req.UserID, permission); err != nil {
		return mapServiceError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *HTTPServer) NoteShareUpdate(c echo.Context) error {
	id, err := GetAndParseParam(c, "id")
	if err != nil {
		return err
	}
	user, err := GetUserFromContext(c)
	if err != nil {
		return err
	}
	req := ShareReq{}
	if err := BindAndValidate(c, &req); err != nil {
		return err
	}
	permission, err := service.ParsePermission(req.Permission)
	if err != nil {
		return mapServiceError(c, err)
	}
	if err := s.svc.UpdateShare(user.ID, id, req.UserID, permission); err != nil {
		return mapServiceError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *HTTPServer) NoteUnshare(c echo.Context) error {
	id, err := GetAndParseParam(c, "id")
	if err != nil {
		return err
	}
	granteeID, err := GetAndParseParam(c, "user_id")
	if err != nil {
		return err
	}
	user, err := GetUserFromContext(c)
	if err != nil {
		return err
	}
	if err := s.svc.Unshare(user.ID, id, granteeID); err != nil {
		return mapServiceError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *HTTPServer) NoteToggleTag(c echo.Context) error {
	id, err := GetAndParseParam(c, "id")
	if err != nil {
		return err
	}
	user, err := GetUserFromContext(c)
	if err != nil {
		return err
	}
	req := ToggleTagReq{}
	if err := BindAndValidate(c, &req); err != nil {
		return err
	}
	if err := s.svc.ToggleTag(user.ID, id, req.TagID, req.On); err != nil {
		return mapServiceError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *HTTPServer) TagResolve(c echo.Context) error {
	user, err := GetUserFromContext(c)
	if err != nil {
		return err
	}
	req := TagReq{}
	if err := BindAndValidate(c, &req); err != nil {
		return err
	}
	id, err := s.svc.ResolveTag(user.ID, req.Name)
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(http.StatusOK, &TagResp{ID: id, Name: strings.TrimSpace(req.Name)})
}

func (s *HTTPServer) AuthMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if c.Path() == "/auth/register" || c.Path() == "/auth/login" || c.Path() == "/ping" {
			return next(c)
		}
		token := ""
		for key, values := range c.Request().Header {
			if strings.ToLower(key) == "x-token" {
				token = values[0]
				break
			}
		}
		if token == "" {
			return c.NoContent(http.StatusUnauthorized)
		}
		user := db.User{}
		res := s.db.Where("token = ?", token).First(&user)
		if res.Error != nil {
			s.logger.Error(errors.Wrap(res.Error, "find user in db"))
			return c.NoContent(http.StatusUnauthorized)
		}

		c.Set("user", &user)
		return next(c)
	}
}

////////

func mapServiceError(c echo.Context, err error) error {
	switch {
	case service.IsValidation(err):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case service.IsConflict(err):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case service.IsNotAuthorized(err):
		return echo.NewHTTPError(http.StatusForbidden, err.Error())
	case service.IsNotFound(err):
		return c.NoContent(http.StatusNotFound)
	case service.IsStorage(err):
		return echo.NewHTTPError(http.StatusBadGateway, "storage failure")
	default:
		return err
	}
}

func toTagResps(tags []service.TagInfo) []TagResp {
	out := make([]TagResp, len(tags))
	for i := range tags {
		out[i] = TagResp{ID: tags[i].ID, Name: tags[i].Name}
	}
	return out
}

func toShareResps(shares []service.ShareInfo) []ShareResp {
	out := make([]ShareResp, len(shares))
	for i := range shares {
		out[i] = ShareResp{
			UserID:     shares[i].UserID,
			Email:      shares[i].Email,
			Permission: shares[i].Permission.String(),
		}
	}
	return out
}

func toSummaryResps(summaries []service.NoteSummary) []NoteSummaryResp {
	out := make([]NoteSummaryResp, len(summaries))
	for i := range summaries {
		out[i] = NoteSummaryResp{
			ID:        summaries[i].ID,
			Title:     summaries[i].Title,
			Subject:   summaries[i].Subject,
			Preview:   summaries[i].Preview,
			UpdatedAt: summaries[i].UpdatedAt,
			OwnerID:   summaries[i].OwnerID,
			Tags:      toTagResps(summaries[i].Tags),
			Shares:    toShareResps(summaries[i].Shares),
		}
	}
	return out
}

// titleCase normalizes display names on the way in, like the signup form
// always did. A cases.Caser is not safe for concurrent use, so one is built
// per call.
func titleCase(s string) string {
	return cases.Title(language.English).String(s)
}

func censorBody(body []byte) []byte {
	parsed := map[string]interface{}{}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return body
	}
	if _, ok := parsed["password"]; ok {
		parsed["password"] = "$censored"
	}
	censored, err := json.Marshal(parsed)
	if err != nil {
		return body
	}
	return censored
}

func (cv *CustomValidator) Validate(i interface{}) error {
	if err := cv.validator.Struct(i); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return nil
}

func BindAndValidate(c echo.Context, v interface{}) error {
	var err error
	if err = c.Bind(v); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err = c.Validate(v); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return nil
}

func GetUserFromContext(c echo.Context) (*db.User, error) {
	user, _ := c.Get("user").(*db.User)
	if user == nil {
		return nil, errors.New("no user found in context")
	}
	return user, nil
}

func GetParam(c echo.Context, name string) (string, error) {
	value := c.Param(name)
	if value == "" {
		return "", echo.NewHTTPError(http.StatusBadRequest, "invalid path param '"+name+"'")
	}
	return value, nil
}

func GetAndParseParam(c echo.Context, name string) (uint64, error) {
	v, e := GetParam(c, name)
	if e != nil {
		return 0, e
	}
	vv, e := strconv.ParseUint(v, 10, 64)
	if e != nil {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid path param '"+name+"'")
	}
	return vv, nil
}
