package receipt

import (
	"bytes"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/ghttp"
)

// multipartBody builds a multipart form with the given files under the field
// name plus any extra form values.
func multipartBody(field string, files map[string][]byte, values map[string]string) (*bytes.Buffer, string) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for name, data := range files {
		part, err := writer.CreateFormFile(field, name)
		Expect(err).NotTo(HaveOccurred())
		_, err = part.Write(data)
		Expect(err).NotTo(HaveOccurred())
	}
	for key, value := range values {
		Expect(writer.WriteField(key, value)).To(Succeed())
	}
	Expect(writer.Close()).To(Succeed())
	return body, writer.FormDataContentType()
}

var _ = Describe("Server", func() {
	var (
		recognizer  *stubRecognizer
		server      *Server
		ghttpServer *ghttp.Server
	)

	setupServer := func() {
		if ghttpServer != nil {
			ghttpServer.Close()
		}
		ghttpServer = ghttp.NewServer()
		ghttpServer.AppendHandlers(server.ServeHTTP)
	}

	BeforeEach(func() {
		recognizer = &stubRecognizer{result: bigMartResult()}
		spool, err := NewLocalSpool(GinkgoT().TempDir())
		Expect(err).NotTo(HaveOccurred())
		server = NewServerWithMux(NewService(recognizer), spool, http.NewServeMux())
		setupServer()
	})

	AfterEach(func() {
		if ghttpServer != nil {
			ghttpServer.Close()
		}
	})

	Describe("handleHealth", func() {
		It("should return status OK", func() {
			resp, err := http.Get(ghttpServer.URL() + "/health")
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
		})
	})

	Describe("handleOCR", func() {
		post := func(files map[string][]byte, values map[string]string) *http.Response {
			body, contentType := multipartBody("file", files, values)
			resp, err := http.Post(ghttpServer.URL()+"/api/ocr", contentType, body)
			Expect(err).NotTo(HaveOccurred())
			return resp
		}

		When("a supported file is uploaded", func() {
			It("should return the assembled document", func() {
				resp := post(map[string][]byte{"receipt.png": []byte("image bytes")}, nil)
				defer resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusOK))

				var doc Document
				Expect(json.NewDecoder(resp.Body).Decode(&doc)).To(Succeed())
				Expect(doc.Store.Name).To(HaveValue(Equal("BIG MART")))
				Expect(doc.Receipt.SourceFilename).To(Equal("receipt.png"))
				Expect(doc.Upload.OriginalFilename).To(Equal("receipt.png"))
			})

			It("should set Content-Type to application/json", func() {
				resp := post(map[string][]byte{"receipt.png": []byte("image bytes")}, nil)
				defer resp.Body.Close()
				Expect(resp.Header.Get("Content-Type")).To(Equal("application/json"))
			})
		})

		When("form fields override the defaults", func() {
			It("passes them to the pipeline", func() {
				resp := post(
					map[string][]byte{"receipt.png": []byte("image bytes")},
					map[string]string{"language": "fr", "min_confidence": "0.5", "page_limit": "3"},
				)
				defer resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusOK))
				Expect(recognizer.lastOpts.Language).To(Equal("fr"))
				Expect(recognizer.lastOpts.MinConfidence).To(HaveValue(Equal(0.5)))
				Expect(recognizer.lastOpts.PageLimit).To(Equal(3))
			})
		})

		When("no file is provided", func() {
			It("should return status Bad Request with a JSON error", func() {
				resp := post(nil, map[string]string{"language": "en"})
				defer resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))

				var errBody map[string]string
				Expect(json.NewDecoder(resp.Body).Decode(&errBody)).To(Succeed())
				Expect(errBody).To(HaveKey("error"))
			})
		})

		When("the file type is unsupported", func() {
			It("should return status Bad Request", func() {
				resp := post(map[string][]byte{"notes.txt": []byte("hello")}, nil)
				defer resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
			})

			It("never calls the recognizer", func() {
				resp := post(map[string][]byte{"notes.txt": []byte("hello")}, nil)
				resp.Body.Close()
				Expect(recognizer.calls).To(BeZero())
			})
		})

		When("min_confidence is explicitly zero", func() {
			It("accepts it and passes it through", func() {
				resp := post(
					map[string][]byte{"receipt.png": []byte("image bytes")},
					map[string]string{"min_confidence": "0"},
				)
				defer resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusOK))
				Expect(recognizer.lastOpts.MinConfidence).To(HaveValue(Equal(0.0)))
			})
		})

		When("min_confidence is out of range", func() {
			It("should return status Bad Request", func() {
				resp := post(
					map[string][]byte{"receipt.png": []byte("image bytes")},
					map[string]string{"min_confidence": "1.5"},
				)
				defer resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
			})
		})

		When("recognition fails", func() {
			BeforeEach(func() {
				recognizer.err = errors.New("backend down")
			})

			It("should return status Internal Server Error", func() {
				resp := post(map[string][]byte{"receipt.png": []byte("image bytes")}, nil)
				defer resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusInternalServerError))
			})
		})
	})

	Describe("handleBatch", func() {
		post := func(files map[string][]byte, values map[string]string) *http.Response {
			body, contentType := multipartBody("files", files, values)
			resp, err := http.Post(ghttpServer.URL()+"/api/ocr/batch", contentType, body)
			Expect(err).NotTo(HaveOccurred())
			return resp
		}

		When("several files are uploaded", func() {
			It("returns a batch envelope with every result", func() {
				resp := post(map[string][]byte{
					"first.png":  []byte("image bytes"),
					"second.jpg": []byte("image bytes"),
				}, nil)
				defer resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusOK))

				var batch BatchResult
				Expect(json.NewDecoder(resp.Body).Decode(&batch)).To(Succeed())
				Expect(batch.JobID).NotTo(BeEmpty())
				Expect(batch.Results).To(HaveLen(2))
				Expect(batch.Summary.TotalFiles).To(Equal(2))
				Expect(batch.Summary.Successful).To(Equal(2))
			})

			It("reports the uploaded filenames, not spool paths", func() {
				resp := post(map[string][]byte{"first.png": []byte("image bytes")}, nil)
				defer resp.Body.Close()

				var batch BatchResult
				Expect(json.NewDecoder(resp.Body).Decode(&batch)).To(Succeed())
				Expect(batch.Results[0].Receipt.SourceFilename).To(Equal("first.png"))
				Expect(batch.Results[0].Upload.OriginalFilename).To(Equal("first.png"))
			})
		})

		When("one file fails", func() {
			It("records it in the error list and keeps the rest", func() {
				resp := post(map[string][]byte{
					"first.png": []byte("image bytes"),
					"notes.txt": []byte("hello"),
				}, nil)
				defer resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusOK))

				var batch BatchResult
				Expect(json.NewDecoder(resp.Body).Decode(&batch)).To(Succeed())
				Expect(batch.Results).To(HaveLen(1))
				Expect(batch.Errors).To(HaveLen(1))
				Expect(batch.Errors[0].File).To(Equal("notes.txt"))
				Expect(batch.Summary.Failed).To(Equal(1))
			})
		})

		When("no files are uploaded", func() {
			It("should return status Bad Request", func() {
				resp := post(nil, map[string]string{"language": "en"})
				defer resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
			})
		})
	})
})
