package handler

import (
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/kmsv-2726/federated-socmed/internal/identity"
	"github.com/kmsv-2726/federated-socmed/internal/model"
)

// RegisterValidators 在 gin 的默认校验器上注册自定义 tag：
//
//	fedid      合法的联邦标识符
//	visibility 频道可见性枚举
func RegisterValidators() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return nil
	}
	if err := v.RegisterValidation("fedid", func(fl validator.FieldLevel) bool {
		_, err := identity.Parse(fl.Field().String())
		return err == nil
	}); err != nil {
		return err
	}
	return v.RegisterValidation("visibility", func(fl validator.FieldLevel) bool {
		return model.Visibility(fl.Field().String()).Valid()
	})
}
